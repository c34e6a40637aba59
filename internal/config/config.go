package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "PHOTOREVIEW"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "photoreview.db"
	defaultLogLevel     = "info"
	defaultLogFormat    = LogFormatJSON
	defaultSheetsRange  = "Sheet1!A1:Z1000"
	defaultStoreDriver  = StoreDriverSheets
	defaultMockCount    = 40
	defaultIssuer       = "tauth"
	defaultCookieName   = "app_session"
)

const (
	// StoreDriverSheets reads and writes the configured spreadsheet.
	StoreDriverSheets = "sheets"
	// StoreDriverMock serves generated photos from memory.
	StoreDriverMock = "mock"

	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// legacyEnv maps keys to the unprefixed variable names the dashboard has always read.
var legacyEnv = map[string]string{
	"sheets.api_key":        "GOOGLE_SHEETS_API_KEY",
	"sheets.spreadsheet_id": "GOOGLE_SHEETS_SPREADSHEET_ID",
	"sheets.range":          "GOOGLE_SHEETS_RANGE",
}

// SheetsConfig locates the spreadsheet holding the photo rows.
type SheetsConfig struct {
	APIKey        string
	SpreadsheetID string
	Range         string
	Endpoint      string
}

// SessionConfig enables reviewer sessions when SigningSecret is set.
type SessionConfig struct {
	SigningSecret string
	Issuer        string
	CookieName    string
}

// Enabled reports whether mutating routes require a reviewer session.
func (c SessionConfig) Enabled() bool {
	return strings.TrimSpace(c.SigningSecret) != ""
}

// AppConfig captures runtime configuration for the API server and the CLI.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string
	LogFormat    string
	StoreDriver  string
	MockCount    int
	Sheets       SheetsConfig
	Session      SessionConfig
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	for key, legacy := range legacyEnv {
		// BindEnv only fails when no key is given.
		_ = configViper.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("sheets.range", defaultSheetsRange)
	configViper.SetDefault("store.driver", defaultStoreDriver)
	configViper.SetDefault("store.mock_count", defaultMockCount)
	configViper.SetDefault("session.issuer", defaultIssuer)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:  configViper.GetString("http.address"),
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),
		LogFormat:    strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		StoreDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString("store.driver"))),
		MockCount:    configViper.GetInt("store.mock_count"),
		Sheets: SheetsConfig{
			APIKey:        strings.TrimSpace(configViper.GetString("sheets.api_key")),
			SpreadsheetID: strings.TrimSpace(configViper.GetString("sheets.spreadsheet_id")),
			Range:         strings.TrimSpace(configViper.GetString("sheets.range")),
			Endpoint:      strings.TrimSpace(configViper.GetString("sheets.endpoint")),
		},
		Session: loadSession(configViper),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadSession reads only the session keys, for commands that sign cookies
// without touching the store. The signing secret is required.
func LoadSession(configViper *viper.Viper) (SessionConfig, error) {
	cfg := loadSession(configViper)
	if !cfg.Enabled() {
		return SessionConfig{}, fmt.Errorf("session.signing_secret is required")
	}
	if err := cfg.validate(); err != nil {
		return SessionConfig{}, err
	}
	return cfg, nil
}

func loadSession(configViper *viper.Viper) SessionConfig {
	return SessionConfig{
		SigningSecret: configViper.GetString("session.signing_secret"),
		Issuer:        configViper.GetString("session.issuer"),
		CookieName:    configViper.GetString("session.cookie_name"),
	}
}

func (c AppConfig) validate() error {
	switch c.StoreDriver {
	case StoreDriverSheets:
		if c.Sheets.APIKey == "" {
			return fmt.Errorf("sheets.api_key is required for store.driver %q", StoreDriverSheets)
		}
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets.spreadsheet_id is required for store.driver %q", StoreDriverSheets)
		}
	case StoreDriverMock:
		if c.MockCount < 0 {
			return fmt.Errorf("store.mock_count must not be negative")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.StoreDriver)
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatConsole:
	default:
		return fmt.Errorf("log.format %q is not supported", c.LogFormat)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Session.Enabled() {
		return c.Session.validate()
	}
	return nil
}

func (c SessionConfig) validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("session.issuer is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	return nil
}
