package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mowbotai/fleetd/app"
	"github.com/mowbotai/fleetd/config"
	"github.com/mowbotai/fleetd/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "fleetd",
	Short: "VDA5050 fleet communication service",
}

func init() {
	rootCmd.RunE = run
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig falls back to defaults plus environment when the default
// config file is absent, so a bare `fleetd` still starts.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		return config.LoadDefaults()
	}
	return config.Load(cfgPath)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
