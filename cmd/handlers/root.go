/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gospeldiary/internal/config"
	"gospeldiary/internal/fetch"
	"gospeldiary/internal/logger"
	"gospeldiary/internal/pipeline"
	"gospeldiary/internal/reflection"
)

// Process exit codes, one per failure kind.
const (
	ExitOK                  = 0
	ExitOther               = 1
	ExitFetchFailed         = 2
	ExitContentNotFound     = 3
	ExitTemplatePlaceholder = 4
	ExitOutputTruncated     = 5
	ExitAPIError            = 6
	ExitDeliveryFailed      = 7
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	appConfig *config.Config
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gospeldiary",
		Short: "Daily Gospel reflection delivered by email.",
		Long: `gospeldiary fetches today's Gospel from the USCCB daily readings page,
asks a generative AI model for a personal reflection on it and emails the result.

Run 'gospeldiary run' once a day (for example from cron), or keep
'gospeldiary schedule' running to trigger it in-process.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gospeldiary.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or text (default from config)")

	// Add subcommands
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewFetchCmd())
	rootCmd.AddCommand(NewPromptCmd())
	rootCmd.AddCommand(NewModelsCmd())
	rootCmd.AddCommand(NewScheduleCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command and exits with the code for the failure kind
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCode(err))
	}
}

// ExitCode maps an error to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, fetch.ErrFetchFailed):
		return ExitFetchFailed
	case errors.Is(err, fetch.ErrContentNotFound):
		return ExitContentNotFound
	case errors.Is(err, reflection.ErrTemplateMissingPlaceholder):
		return ExitTemplatePlaceholder
	case errors.Is(err, reflection.ErrOutputTruncated):
		return ExitOutputTruncated
	case errors.Is(err, reflection.ErrAPI):
		return ExitAPIError
	case errors.Is(err, pipeline.ErrDeliveryFailed):
		return ExitDeliveryFailed
	default:
		return ExitOther
	}
}

// initConfig reads in config file and ENV variables and sets up logging
func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	logger.Init(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}

	appConfig = cfg
	return nil
}

// parseDate reads a YYYY-MM-DD flag value, defaulting to today in loc
func parseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	date, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", value)
	}
	return date, nil
}
