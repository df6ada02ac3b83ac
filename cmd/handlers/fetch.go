package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gospeldiary/internal/core"
	"gospeldiary/internal/fetch"
	"gospeldiary/internal/logger"
)

// NewFetchCmd creates the fetch command: extraction only
func NewFetchCmd() *cobra.Command {
	var (
		dateStr string
		file    string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Extract the Gospel excerpt without calling the AI",
		Long: `Download the readings page (or read a saved copy) and print the
extracted Gospel citation, link and text. Useful to check the locators
after the readings site changes its layout.

Examples:
  gospeldiary fetch
  gospeldiary fetch --date 2024-03-09 --json
  gospeldiary fetch --file saved-page.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(dateStr, appConfig.Location())
			if err != nil {
				return err
			}
			record, err := extractRecord(cmd.Context(), date, file)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(record)
			}
			fmt.Printf("📖 %s\n🔗 %s\n🧭 %s (%s)\n\n%s\n", record.Citation, record.SourceLink, record.PageURL, record.Locator, record.Body)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "Date to fetch, YYYY-MM-DD (default today in the configured timezone)")
	cmd.Flags().StringVar(&file, "file", "", "Extract from a saved HTML file instead of downloading")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the record as JSON")

	return cmd
}

func newFetcher() *fetch.Fetcher {
	return fetch.NewFetcher(fetch.Options{
		URL:       appConfig.Source.URL,
		Timeout:   appConfig.Source.Timeout,
		UserAgent: appConfig.Source.UserAgent,
	}, logger.Get())
}

// extractRecord downloads the page for date, or parses file when set
func extractRecord(ctx context.Context, date time.Time, file string) (core.ExcerptRecord, error) {
	fetcher := newFetcher()
	if file == "" {
		return fetcher.Fetch(ctx, date)
	}

	f, err := os.Open(file)
	if err != nil {
		return core.ExcerptRecord{}, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	return fetcher.ExtractHTML(f, fetcher.URLFor(date))
}
