package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/config"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "cash",
		Short: "💸 Small-business cash flow forecasting",
		Long: `the-cash-must-flow: forecasts income and expenses, flags unusual
transactions, suggests good days for purchases and summarizes your week.

The cash must flow!`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/cash/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(anomaliesCmd())
	rootCmd.AddCommand(recommendCmd())
	rootCmd.AddCommand(weeklyCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(importOFXCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(runtimeCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	interrupts := cli.NewInterruptHandler(os.Stderr)
	ctx := interrupts.HandleInterrupts(context.Background(), false)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, cli.FormatError(userErr.UserMessage))
		} else if !interrupts.WasInterrupted() {
			fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		}
		os.Exit(1)
	}
}

// setDefaults registers every configuration key with its default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", config.DefaultDatabasePath)
	v.SetDefault("user.id", "default")

	v.SetDefault("forecast.horizon_days", 30)
	v.SetDefault("forecast.epochs", 150)
	v.SetDefault("forecast.batch_size", 16)
	v.SetDefault("forecast.learning_rate", 0.01)
	v.SetDefault("forecast.seed", 42)

	v.SetDefault("runtime.hostname", "localhost")
	v.SetDefault("runtime.user_agent", "")
	v.SetDefault("runtime.low_power", false)
	v.SetDefault("runtime.demotion_probability", 0.3)
	v.SetDefault("runtime.persist_verdict", true)

	v.SetDefault("anomalies.sensitivity", 2.0)
	v.SetDefault("recommend.lookahead_days", 14)
	v.SetDefault("report.currency_symbol", "₹")

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func initConfig(_ *cobra.Command, _ []string) error {
	setDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.ExpandPath(config.DefaultConfigDir))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// CASH_FORECAST_EPOCHS overrides forecast.epochs.
	viper.SetEnvPrefix("CASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := setupLogging(); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func setupLogging() error {
	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return err
	}
	return common.SetupLogger(level, viper.GetString("logging.format"))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			slog.Debug("cash version", "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "cash %s\n", version)
		},
	}
}
