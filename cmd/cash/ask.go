package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-cash-must-flow/internal/advisor"
	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/common"
)

func askCmd() *cobra.Command {
	var (
		canned string
		period string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the financial advisor about your data",
		Long: `Ask questions about your income and expenses. The advisor sees your totals,
top expense categories, recent transactions and the last few exchanges.

Without a question an interactive session starts; type "clear" to forget the
conversation and "quit" to leave.`,
		Example: `  # One question
  cash ask "Where did most of my money go this month?"

  # A canned review
  cash ask --type anomalies
  cash ask --type forecast --period next_quarter

  # Interactive session
  cash ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			textModel, err := createTextModel(ctx)
			if err != nil {
				return common.NewUserError("the advisor needs a configured text model", err)
			}
			prompts, err := advisor.NewPromptBuilder(currencySymbol())
			if err != nil {
				return err
			}

			agent := advisor.New(store, store, textModel, prompts)
			if err := agent.Initialize(ctx, userID()); err != nil {
				return fmt.Errorf("failed to load financial data: %w", err)
			}

			out := cmd.OutOrStdout()
			if canned != "" {
				reply, err := cannedQuery(ctx, agent, canned, period)
				if err != nil {
					return err
				}
				printf(out, "%s\n", reply)
				return nil
			}
			if len(args) > 0 {
				printf(out, "%s\n", agent.Ask(ctx, strings.Join(args, " "), advisor.QueryGeneral))
				return nil
			}
			return chat(ctx, agent, cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().StringVarP(&canned, "type", "t", "", "canned query (anomalies, insights, forecast, summary)")
	cmd.Flags().StringVarP(&period, "period", "p", "", "period for forecast and summary queries")

	return cmd
}

// cannedQuery runs one of the prepared questions.
func cannedQuery(ctx context.Context, agent *advisor.Agent, name, period string) (string, error) {
	switch name {
	case "anomalies":
		return agent.ReviewAnomalies(ctx), nil
	case "insights":
		return agent.Insights(ctx), nil
	case "forecast":
		return agent.ForecastExpenses(ctx, period), nil
	case "summary":
		return agent.Summary(ctx, period), nil
	default:
		return "", fmt.Errorf("unknown query type %q (want anomalies, insights, forecast or summary)", name)
	}
}

// chat runs the interactive question loop until quit, EOF or cancellation.
func chat(ctx context.Context, agent *advisor.Agent, in io.Reader, out io.Writer) error {
	reader := cli.NewNonBlockingReader(in)
	printf(out, "%s\n", cli.FormatTitle(cli.RobotIcon+" Ask about your finances"))
	printf(out, "%s\n", cli.SubtleStyle.Render(`Type "clear" to reset the conversation, "quit" to exit.`))

	for {
		printf(out, "%s", cli.FormatPrompt("> "))
		line, err := reader.ReadLine(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, cli.ErrInputCancelled):
			printf(out, "\n")
			return nil
		case err != nil:
			return err
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "clear":
			agent.ClearHistory()
			printf(out, "%s\n", cli.FormatInfo("Conversation cleared."))
			continue
		}

		printf(out, "%s\n\n", agent.Ask(ctx, line, advisor.QueryGeneral))
	}
}
