package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ticketops/config"
	"ticketops/engine"
	"ticketops/logging"
	"ticketops/rights"
	"ticketops/store"
)

var Version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "ticketops",
	Short:         "Surveillance and asset maintenance helpdesk",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "ticketops", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ticketops.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd, importLegacyCmd, clearStockCmd, emailTestCmd, backupCmd, createAdminCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ticketops:", err)
		os.Exit(1)
	}
}

// app holds what every command needs: config, logger and an open store.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *store.DB
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if seeded, err := rights.SeedDefaults(db); err != nil {
		db.Close()
		log.Sync()
		return nil, fmt.Errorf("seed permissions: %w", err)
	} else if seeded {
		log.Info("default permissions seeded")
	}
	log.Info("database open", zap.String("driver", cfg.Database.Driver))
	return &app{cfg: cfg, log: log, db: db}, nil
}

// engine builds an unstarted engine for one-shot commands.
func (a *app) engine() *engine.Engine {
	return engine.New(engine.Config{AppConfig: a.cfg, ConfigPath: configPath, DB: a.db, Logger: a.log})
}

func (a *app) close() {
	a.db.Close()
	a.log.Sync()
}
