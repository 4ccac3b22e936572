package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-cash-must-flow/internal/advisor"
	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/neural"
	"github.com/Veraticus/the-cash-must-flow/internal/predict"
)

func forecastCmd() *cobra.Command {
	var (
		typ      string
		days     int
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast daily income or expenses",
		Long: `Forecast daily amounts for the coming days.

A sequence model is trained on your history when there is enough of it and the
runtime is available; otherwise a trend-adjusted moving average is used and the
points are marked as estimates.`,
		Example: `  # Forecast the next 30 days of expenses
  cash forecast

  # Forecast two weeks of income with a training progress bar
  cash forecast --type income --days 14 --progress`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			txnType, err := model.ParseTransactionType(typ)
			if err != nil {
				return err
			}
			if _, err := outputFormat(cmd); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var onEpoch func(neural.EpochStats)
			var bar *cli.TrainingProgress
			if progress {
				bar = cli.NewTrainingProgress(cmd.ErrOrStderr(), "")
				onEpoch = bar.OnEpoch
			}

			forecast := buildEngine(store, onEpoch).Forecast(ctx, userID(), txnType, days)
			if bar != nil {
				bar.Finish()
			}
			if forecast.Err != nil {
				slog.Warn("Forecast degraded", "status", forecast.Status, "error", forecast.Err)
			}
			if forecast.Status == predict.StatusFailed && ctx.Err() != nil {
				return ctx.Err()
			}

			return render(cmd, forecast, func(r *cli.Renderer) error {
				return r.Forecast(forecast)
			})
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", string(model.TransactionTypeExpense), "transaction type to forecast (income, expense)")
	cmd.Flags().IntVarP(&days, "days", "n", 0, "days to forecast (default: forecast.horizon_days)")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar while training")
	addFormatFlag(cmd)

	return cmd
}

func anomaliesCmd() *cobra.Command {
	var sensitivity float64

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Find unusual transactions",
		Long: `List transactions whose amount is far from the usual amount for their
category and type. Lower sensitivity flags more transactions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := outputFormat(cmd); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			anomalies := buildEngine(store, nil).DetectAnomalies(ctx, userID(), sensitivity)
			return render(cmd, anomalies, func(r *cli.Renderer) error {
				return r.Anomalies(anomalies)
			})
		},
	}

	cmd.Flags().Float64VarP(&sensitivity, "sensitivity", "s", 0, "standard deviations from the mean (default: anomalies.sensitivity)")
	addFormatFlag(cmd)

	return cmd
}

func recommendCmd() *cobra.Command {
	var lookahead int

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Suggest good days for purchases",
		Long: `Suggest up to three upcoming days with the highest projected cash flow.
With little history the suggestion falls back to your best weekdays so far.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := outputFormat(cmd); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result := buildEngine(store, nil).RecommendPurchaseDays(ctx, userID(), lookahead)
			return render(cmd, result, func(r *cli.Renderer) error {
				return r.Recommendations(result)
			})
		},
	}

	cmd.Flags().IntVarP(&lookahead, "lookahead", "l", 0, "days to look ahead (default: recommend.lookahead_days)")
	addFormatFlag(cmd)

	return cmd
}

// weeklyReport is the JSON shape of `cash weekly`.
type weeklyReport struct {
	Summary   *model.WeeklySummary `json:"summary"`
	Narrative string               `json:"narrative,omitempty"`
}

func weeklyCmd() *cobra.Command {
	var narrative bool

	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Summarize this week against last week",
		Long: `Compare the current Sunday-Saturday week with the previous one: totals,
trends, top categories, notable transactions and generated insights.

With --narrative the summary is also written up by the configured text model.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := outputFormat(cmd); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summary := buildEngine(store, nil).WeeklySummary(ctx, userID())
			report := weeklyReport{Summary: summary}

			if narrative && summary != nil {
				prompts, err := advisor.NewPromptBuilder(currencySymbol())
				if err != nil {
					return err
				}
				// Without a text model the narrative degrades to the insights.
				textModel, err := createTextModel(ctx)
				if err != nil {
					slog.Warn("Text model unavailable, using generated insights", "error", err)
				}
				var agent *advisor.Agent
				if textModel != nil {
					agent = advisor.New(store, store, textModel, prompts)
				} else {
					agent = advisor.New(store, store, nil, prompts)
				}
				report.Narrative = agent.Narrative(ctx, summary)
			}

			return render(cmd, report, func(r *cli.Renderer) error {
				if err := r.WeeklySummary(summary); err != nil {
					return err
				}
				if report.Narrative != "" {
					printf(cmd.OutOrStdout(), "\n%s\n%s\n", cli.FormatTitle(cli.RobotIcon+" Narrative"), report.Narrative)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&narrative, "narrative", false, "add a written narrative from the text model")
	addFormatFlag(cmd)

	return cmd
}
