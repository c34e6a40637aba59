package main

import (
	"fmt"
	"io"
	"time"

	"github.com/MarcoPoloResearchLab/photoreview/internal/auth"
	"github.com/MarcoPoloResearchLab/photoreview/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSessionCommand() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage reviewer sessions",
	}
	sessionCmd.AddCommand(newSessionIssueCommand())
	return sessionCmd
}

func newSessionIssueCommand() *cobra.Command {
	var email, name string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue <reviewer-id>",
		Short: "Print a reviewer session cookie signed with session.signing_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionConfig, err := config.LoadSession(viper.GetViper())
			if err != nil {
				return err
			}
			return writeSessionCookie(cmd.OutOrStdout(), sessionConfig, ttl, auth.Reviewer{ID: args[0], Email: email, Name: name})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Reviewer email claim")
	cmd.Flags().StringVar(&name, "name", "", "Reviewer display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Session lifetime")
	return cmd
}

func writeSessionCookie(out io.Writer, sessionConfig config.SessionConfig, ttl time.Duration, reviewer auth.Reviewer) error {
	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(sessionConfig.SigningSecret),
		Issuer:        sessionConfig.Issuer,
		TTL:           ttl,
	})
	if err != nil {
		return err
	}
	token, expiresIn, err := issuer.Issue(reviewer)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s=%s; Max-Age=%d; Path=/; HttpOnly\n", sessionConfig.CookieName, token, expiresIn)
	return err
}
