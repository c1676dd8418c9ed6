// Command juryoled shows the game clock, shot clock and score from the
// scoreboard controller on an I2C OLED at the jury table.
//
// Usage:
//
//	juryoled run -c settings.json       # drive the display
//	juryoled validate -c settings.json  # check the settings and exit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "juryoled",
	Short: "Scoreboard status on a small OLED display",
	Long: `juryoled polls the game clock, shot clock and score endpoints of the
scoreboard controller every 200ms and shows them, together with the
host's IP address, on a 128x64 SSD1306 OLED.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the scoreboard and drive the display",
	RunE:  runDisplay,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the settings file",
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "settings.json", "path to settings file (YAML or JSON)")
	rootCmd.PersistentFlags().String("env-file", ".env", "optional .env file with JURYOLED_* overrides")
	rootCmd.AddCommand(runCmd, validateCmd)
}

func loadFromFlags(cmd *cobra.Command) (*Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	return loadConfig(configFile, envFile)
}

func runDisplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadFromFlags(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)

	// invalid settings end the process before any loop starts
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid settings")
		os.Exit(1)
	}

	display, err := openDisplay(cfg.Display, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Display.Driver).Msg("failed to open display")
		os.Exit(1)
	}

	svc, err := NewService(cfg, display, newSystemInterfaces(), logger)
	if err != nil {
		display.Close()
		logger.Error().Err(err).Msg("failed to start")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := svc.Run(ctx)
	if err := svc.Close(); err != nil {
		logger.Warn().Err(err).Msg("display shutdown")
	}
	return runErr
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "settings OK: clientType=%s display=%s %dx%d@0x%02X\n",
		cfg.ClientType, cfg.Display.Driver, cfg.Display.Width, cfg.Display.Height, cfg.Display.Address)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
