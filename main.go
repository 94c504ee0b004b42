// @title        LIBRIS API
// @version      1.0
// @description  Library portal backend: catalog, borrow requests, returns and overdue tracking.
// @BasePath     /
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/config"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/logging"
	"LIBRIS-backend/internal/portal"
)

var (
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "libris",
	Short:         "LIBRIS library portal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// serve / migrate / seed が使う。portal はサーバの設定を読まない。
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	l, err := logging.New(c.Mode, c.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg, logger = c, l
	logger.Info("config loaded", zap.String("mode", cfg.Mode), zap.String("driver", cfg.DB.Driver))
	return nil
}

func teardown(*cobra.Command, []string) {
	if logger != nil {
		_ = logger.Sync()
	}
}

func connect() (*db.Conn, error) {
	conn, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	name := cfg.DB.DBName
	if cfg.DB.Driver == config.DriverSQLite {
		name = cfg.DB.Path
	}
	logger.Info("connected to DB", zap.String("driver", conn.Driver), zap.String("db", name))
	return conn, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to config.yaml")
	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedCmd(), portal.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		if !portal.IsSilent(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
