package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "migrate",
		Short:             "Apply pending database migrations",
		Args:              cobra.NoArgs,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			applied, err := db.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		},
	}
}

// seedCmd は最初の admin を作る。既にあれば何もしない。
func seedCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:               "seed",
		Short:             "Create the first admin account",
		Args:              cobra.NoArgs,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			if _, err := db.Migrate(cmd.Context(), conn); err != nil {
				return err
			}
			u, created, err := auth.NewService(conn, cfg.Auth).EnsureAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			logger.Info("admin account", zap.Int64("id", u.ID), zap.String("email", u.Email), zap.Bool("created", created))
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id=%d)\n", u.Email, u.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists (id=%d)\n", u.Email, u.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (min 6 chars)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
