package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gospeldiary/internal/email"
	"gospeldiary/internal/logger"
	"gospeldiary/internal/pipeline"
)

// NewRunCmd creates the run command: the daily job
func NewRunCmd() *cobra.Command {
	var (
		dateStr string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch today's Gospel, generate the reflection and email it",
		Long: `Run the daily job once: extract the Gospel from the readings page,
generate a reflection with the configured AI provider and send it by email.

Exit codes:
  0  success
  1  other error (configuration, rendering)
  2  readings page could not be fetched
  3  no Gospel excerpt found on the page
  4  prompt template is missing {date} or {bible_content}
  5  model output still truncated after all retries
  6  AI provider error
  7  email delivery failed

Examples:
  # Send today's reflection
  gospeldiary run

  # Generate for a specific day and print instead of sending
  gospeldiary run --date 2024-03-09 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaily(cmd.Context(), dateStr, dryRun)
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "Date to run for, YYYY-MM-DD (default today in the configured timezone)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the result instead of sending email")

	return cmd
}

func runDaily(ctx context.Context, dateStr string, dryRun bool) error {
	log := logger.Get()

	date, err := parseDate(dateStr, appConfig.Location())
	if err != nil {
		return err
	}

	builder := pipeline.NewBuilder(appConfig).WithLogger(log)
	if dryRun {
		builder = builder.WithoutDelivery()
	}
	p, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if dryRun {
		result, err := p.Compose(ctx, date)
		if err != nil {
			return err
		}
		fmt.Print(email.RenderText(result.Delivery))
		return nil
	}

	result, err := p.Run(ctx, date)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Sent reflection on %s (%d attempt(s), %s)\n",
		result.Delivery.Citation, result.Stats.Attempts, result.Stats.TotalDuration.Round(time.Millisecond))
	return nil
}
