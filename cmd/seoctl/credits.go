package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
)

func init() {
	credits := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and adjust generation credits",
	}

	grant := &cobra.Command{
		Use:   "grant",
		Short: "Add credits to a user's balance",
		Long: `Add credits to a user's balance, creating the subscription row if needed.

Example:
  seoctl credits grant --user 5f0c... --amount 10`,
		RunE: runCreditsGrant,
	}
	grant.Flags().StringP("user", "u", "", "user id (required)")
	grant.Flags().IntP("amount", "a", 0, "credits to add (required)")
	_ = grant.MarkFlagRequired("user")
	_ = grant.MarkFlagRequired("amount")

	balance := &cobra.Command{
		Use:   "balance",
		Short: "Print a user's remaining credits",
		RunE:  runCreditsBalance,
	}
	balance.Flags().StringP("user", "u", "", "user id (required)")
	_ = balance.MarkFlagRequired("user")

	credits.AddCommand(grant, balance)
	rootCmd.AddCommand(credits)
}

func runCreditsGrant(cmd *cobra.Command, _ []string) error {
	rawUser, _ := cmd.Flags().GetString("user")
	amount, _ := cmd.Flags().GetInt("amount")
	uid, err := uuid.Parse(rawUser)
	if err != nil {
		return fmt.Errorf("--user: %w", err)
	}
	if amount <= 0 {
		return errors.New("--amount must be positive")
	}

	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	db, err := pg.NewDB(cmd.Context(), cfg.DB)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	total, err := pg.NewCreditRepo(db).Grant(cmd.Context(), uid, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user %s now has %d credits\n", uid, total)
	return nil
}

func runCreditsBalance(cmd *cobra.Command, _ []string) error {
	rawUser, _ := cmd.Flags().GetString("user")
	uid, err := uuid.Parse(rawUser)
	if err != nil {
		return fmt.Errorf("--user: %w", err)
	}

	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	db, err := pg.NewDB(cmd.Context(), cfg.DB)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	n, err := pg.NewCreditRepo(db).Available(cmd.Context(), uid)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user %s has %d credits\n", uid, n)
	return nil
}
