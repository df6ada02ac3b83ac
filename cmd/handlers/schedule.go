package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gospeldiary/internal/logger"
	"gospeldiary/internal/pipeline"
	"gospeldiary/internal/schedule"
)

// NewScheduleCmd creates the schedule command: run the daily job in-process
func NewScheduleCmd() *cobra.Command {
	var (
		spec   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Keep running and send the reflection on a cron schedule",
		Long: `Stay in the foreground and run the daily job on a five-field cron
expression (default "0 6 * * *") in the configured timezone. Stop with Ctrl+C;
a run in progress is allowed to finish.

Examples:
  gospeldiary schedule
  gospeldiary schedule --cron "30 5 * * *" --run-now`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec == "" {
				spec = appConfig.Schedule.Cron
			}
			return runSchedule(cmd.Context(), spec, runNow)
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression (default from config: schedule.cron)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Also run once immediately at startup")

	return cmd
}

func runSchedule(ctx context.Context, spec string, runNow bool) error {
	log := logger.Get()

	loc := appConfig.Location()
	if tz := appConfig.Schedule.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid schedule timezone %q: %w", tz, err)
		}
		loc = l
	}

	sched, err := schedule.New(spec, loc, log)
	if err != nil {
		return err
	}

	p, err := pipeline.NewBuilder(appConfig).WithLogger(log).Build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	job := func(ctx context.Context, now time.Time) error {
		date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		_, err := p.Run(ctx, date)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runNow {
		if err := job(ctx, time.Now().In(loc)); err != nil {
			log.Error("Startup run failed", "error", err, "exit_code", ExitCode(err))
		}
	}

	fmt.Printf("⏰ Next run at %s. Press Ctrl+C to stop.\n", sched.Next(time.Now()).Format(time.RFC1123))
	return sched.Run(ctx, job)
}
