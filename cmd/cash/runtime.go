package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/predict"
)

// runtimeStatus is the JSON shape of `cash runtime status`.
type runtimeStatus struct {
	DisabledReason string  `json:"disabled_reason,omitempty"`
	Hostname       string  `json:"hostname"`
	StoredVerdict  *bool   `json:"stored_verdict,omitempty"`
	Demotion       float64 `json:"demotion_probability"`
	Enabled        bool    `json:"enabled"`
	ProbeOK        bool    `json:"probe_ok"`
	Production     bool    `json:"production"`
	LowPower       bool    `json:"low_power"`
}

func runtimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runtime",
		Short: "Inspect or reset the sequence model runtime",
		Long: `The sequence model is switched off for good when its runtime fails. That
verdict is stored in the database; use "cash runtime reset" to try again.`,
	}

	cmd.AddCommand(runtimeStatusCmd())
	cmd.AddCommand(runtimeResetCmd())

	return cmd
}

func runtimeStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the sequence model can be used",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			v := viper.GetViper()
			guard := buildForecaster(v, store, nil, nil).Guard()
			env := guard.Environment()

			status := runtimeStatus{
				Hostname:   env.Hostname,
				Production: env.IsProduction(),
				LowPower:   env.IsLowPower(),
				Demotion:   v.GetFloat64("runtime.demotion_probability"),
			}
			if value, ok, err := store.GetFlag(ctx, predict.FlagFeatureEnabled); err == nil && ok {
				status.StoredVerdict = &value
			}
			status.ProbeOK = guard.Probe(ctx)
			status.Enabled = guard.Context().IsEnabled(ctx)
			status.DisabledReason = guard.Context().Reason()

			return render(cmd, status, func(_ *cli.Renderer) error {
				out := cmd.OutOrStdout()
				printf(out, "%s\n", cli.FormatTitle(cli.ChartIcon+" Sequence model runtime"))
				if status.Enabled && status.ProbeOK {
					printf(out, "%s\n", cli.FormatSuccess("Available"))
				} else {
					printf(out, "%s\n", cli.FormatWarning(fmt.Sprintf("Unavailable: %s", status.DisabledReason)))
				}
				printf(out, "  Host: %s (production: %t)\n", status.Hostname, status.Production)
				printf(out, "  Low power: %t\n", status.LowPower)
				printf(out, "  Demotion probability: %.2f\n", status.Demotion)
				return nil
			})
		},
	}
	addFormatFlag(cmd)
	return cmd
}

func runtimeResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the stored verdict so the sequence model is tried again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			pctx := predict.NewPredictorContext(store, nil)
			if err := pctx.Enable(ctx); err != nil {
				return fmt.Errorf("failed to reset runtime verdict: %w", err)
			}

			printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess("Sequence model re-enabled"))
			return nil
		},
	}
}
