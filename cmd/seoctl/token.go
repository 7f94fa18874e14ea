package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	gwconfig "github.com/NordCoder/GetMoreSeo/internal/config/api-gateway"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/auth"
)

func init() {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for a user",
		Long: `Mint an HS256 session token signed with the gateway's auth.jwt_secret.
Useful for local testing and for issuing the first API key.`,
		RunE: runToken,
	}
	cmd.Flags().StringP("user", "u", "", "user id (required)")
	cmd.Flags().String("gateway-config", "config/api-gateway.yaml", "api-gateway config file")
	cmd.Flags().Duration("ttl", 0, "token lifetime (default auth.session_ttl)")
	_ = cmd.MarkFlagRequired("user")
	rootCmd.AddCommand(cmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	rawUser, _ := cmd.Flags().GetString("user")
	path, _ := cmd.Flags().GetString("gateway-config")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	uid, err := uuid.Parse(rawUser)
	if err != nil {
		return fmt.Errorf("--user: %w", err)
	}
	cfg, err := gwconfig.Load(path)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cfg.Auth.SessionTTL
	}

	uc := auth.NewUseCase(nil, auth.Config{
		Secret:     []byte(cfg.Auth.JWTSecret),
		SessionTTL: ttl,
		Now:        func() time.Time { return time.Now().UTC() },
	}, nil)
	tok, err := uc.IssueSession(uid)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
