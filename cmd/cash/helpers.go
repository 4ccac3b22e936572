package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/config"
	"github.com/Veraticus/the-cash-must-flow/internal/engine"
	"github.com/Veraticus/the-cash-must-flow/internal/neural"
	"github.com/Veraticus/the-cash-must-flow/internal/predict"
	"github.com/Veraticus/the-cash-must-flow/internal/service"
	"github.com/Veraticus/the-cash-must-flow/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath
	}
	if dbPath != ":memory:" {
		dbPath = config.ExpandPath(dbPath)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func userID() string {
	if id := viper.GetString("user.id"); id != "" {
		return id
	}
	return "default"
}

func currencySymbol() string {
	return viper.GetString("report.currency_symbol")
}

// environment describes this host from the runtime.* settings.
func environment(v *viper.Viper) predict.Environment {
	return predict.Environment{
		Hostname:  v.GetString("runtime.hostname"),
		UserAgent: v.GetString("runtime.user_agent"),
		LowPower:  v.GetBool("runtime.low_power"),
	}
}

// trainOptions reads the forecast.* training settings. onEpoch may be nil.
func trainOptions(v *viper.Viper, onEpoch func(neural.EpochStats)) predict.TrainOptions {
	return predict.TrainOptions{
		Epochs:       v.GetInt("forecast.epochs"),
		BatchSize:    v.GetInt("forecast.batch_size"),
		LearningRate: v.GetFloat64("forecast.learning_rate"),
		Seed:         v.GetInt64("forecast.seed"),
		OnEpoch:      onEpoch,
	}
}

func engineConfig(v *viper.Viper) engine.Config {
	return engine.Config{
		CurrencySymbol: v.GetString("report.currency_symbol"),
		HorizonDays:    v.GetInt("forecast.horizon_days"),
		LookaheadDays:  v.GetInt("recommend.lookahead_days"),
		Sensitivity:    v.GetFloat64("anomalies.sensitivity"),
	}
}

// buildForecaster wires the guard and sequence predictor around the neural
// backend. The verdict is persisted to flags when runtime.persist_verdict is set.
func buildForecaster(v *viper.Viper, flags service.FlagStore, onEpoch func(neural.EpochStats), logger *slog.Logger) *predict.Forecaster {
	var store service.FlagStore
	if v.GetBool("runtime.persist_verdict") {
		store = flags
	}

	backend := predict.NewNeuralBackend()
	pctx := predict.NewPredictorContext(store, logger)
	guard := predict.NewGuard(pctx, backend, environment(v),
		predict.WithDemotionProbability(v.GetFloat64("runtime.demotion_probability")),
		predict.WithGuardLogger(logger),
	)
	seq := predict.NewSequencePredictor(backend, trainOptions(v, onEpoch), logger)
	return predict.NewForecaster(guard, seq, logger)
}

// buildEngine creates an engine over store, using the global configuration.
func buildEngine(store *storage.SQLiteStorage, onEpoch func(neural.EpochStats)) *engine.Engine {
	v := viper.GetViper()
	logger := slog.Default()
	forecaster := buildForecaster(v, store, onEpoch, logger)
	return engine.New(store, store, forecaster,
		engine.WithConfig(engineConfig(v)),
		engine.WithLogger(logger),
		engine.WithClock(today),
	)
}

// nowFunc is the wall clock, overridable in tests.
var nowFunc = time.Now

func today() civil.Date {
	return civil.DateOf(nowFunc())
}

// addFormatFlag registers --format on a report command.
func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "o", "table", "output format (table, json)")
}

func outputFormat(cmd *cobra.Command) (cli.Format, error) {
	f, _ := cmd.Flags().GetString("format")
	return cli.ParseFormat(f)
}

// render writes v as JSON, or calls table to print it for humans.
func render(cmd *cobra.Command, v any, table func(*cli.Renderer) error) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		return cli.WriteJSON(out, v)
	}
	return table(cli.NewRenderer(out, currencySymbol()))
}

func printf(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		slog.Debug("failed to write output", "error", err)
	}
}
