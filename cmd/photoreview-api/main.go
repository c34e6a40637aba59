package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/photoreview/internal/auth"
	"github.com/MarcoPoloResearchLab/photoreview/internal/config"
	"github.com/MarcoPoloResearchLab/photoreview/internal/database"
	"github.com/MarcoPoloResearchLab/photoreview/internal/journal"
	"github.com/MarcoPoloResearchLab/photoreview/internal/logging"
	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"github.com/MarcoPoloResearchLab/photoreview/internal/server"
	"github.com/MarcoPoloResearchLab/photoreview/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const mockSeed = 20220101

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "photoreview-api",
		Short: "Photo review dashboard backend backed by a Google Sheets spreadsheet",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newPhotosCommand(), newSessionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite journal path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("store-driver", defaults.GetString("store.driver"), "Photo store (sheets, mock)")
	cmd.PersistentFlags().Int("mock-count", defaults.GetInt("store.mock_count"), "Number of generated photos for the mock store")
	cmd.PersistentFlags().String("sheets-range", defaults.GetString("sheets.range"), "A1 range holding the photo rows")
	cmd.PersistentFlags().String("sheets-spreadsheet-id", "", "Spreadsheet identifier (overrides env)")
	cmd.PersistentFlags().String("sheets-endpoint", "", "Sheets API base URL override")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "store.driver", "store-driver")
	bindFlag(cmd, "store.mock_count", "mock-count")
	bindFlag(cmd, "sheets.range", "sheets-range")
	bindFlag(cmd, "sheets.spreadsheet_id", "sheets-spreadsheet-id")
	bindFlag(cmd, "sheets.endpoint", "sheets-endpoint")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// application holds everything a command needs; close releases the database.
type application struct {
	config  config.AppConfig
	logger  *zap.Logger
	db      *gorm.DB
	photos  *photos.Service
	journal *journal.Service
}

func newApplication(ctx context.Context, observers ...photos.ChangeObserver) (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	journalService, err := journal.NewService(journal.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: journal.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, appConfig, logger)
	if err != nil {
		return nil, err
	}

	photoService, err := photos.NewService(photos.ServiceConfig{
		Store:     store,
		Observers: append([]photos.ChangeObserver{journalService}, observers...),
		Clock:     time.Now,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &application{
		config:  appConfig,
		logger:  logger,
		db:      db,
		photos:  photoService,
		journal: journalService,
	}, nil
}

func (a *application) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}

func buildStore(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (photos.Store, error) {
	switch appConfig.StoreDriver {
	case config.StoreDriverMock:
		logger.Info("using generated photo catalogue", zap.Int("count", appConfig.MockCount))
		return photos.NewMockStore(mockSeed, appConfig.MockCount, time.Now), nil
	case config.StoreDriverSheets:
		client, err := sheets.NewClient(ctx, sheets.ClientConfig{
			APIKey:        appConfig.Sheets.APIKey,
			SpreadsheetID: appConfig.Sheets.SpreadsheetID,
			Range:         appConfig.Sheets.Range,
			Endpoint:      appConfig.Sheets.Endpoint,
			IDProvider:    photos.NewTimestampIDProvider(time.Now),
			Clock:         time.Now,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("store.driver %q is not supported", appConfig.StoreDriver)
	}
}

func runServer(ctx context.Context) error {
	dispatcher := server.NewRealtimeDispatcher()
	app, err := newApplication(ctx, dispatcher)
	if err != nil {
		return err
	}
	defer app.close()
	logger := app.logger

	// A failed initial load is not fatal; the dashboard can retry through the refresh route.
	if count, err := app.photos.Refresh(ctx); err != nil {
		logger.Warn("initial photo load failed", zap.Error(err))
	} else {
		logger.Info("photos loaded", zap.Int("count", count))
	}

	var sessions server.SessionValidator
	if app.config.Session.Enabled() {
		validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
			SigningSecret: []byte(app.config.Session.SigningSecret),
			Issuer:        app.config.Session.Issuer,
			CookieName:    app.config.Session.CookieName,
		})
		if err != nil {
			return err
		}
		sessions = validator
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		PhotoService: app.photos,
		Journal:      app.journal,
		Sessions:     sessions,
		Realtime:     dispatcher,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    app.config.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", app.config.HTTPAddress),
			zap.String("store", app.config.StoreDriver),
			zap.Bool("sessions", sessions != nil))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
