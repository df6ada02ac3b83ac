package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"gospeldiary/internal/core"
	"gospeldiary/internal/logger"
)

const (
	// DefaultTimeout bounds the whole page request, body included.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBodyBytes caps how much of the page is read.
	DefaultMaxBodyBytes = 5 << 20
	// DefaultUserAgent is sent because the readings site rejects bare clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	datePlaceholder = "{date}"
	urlDateLayout   = "010206"
)

// Options configures a Fetcher.
type Options struct {
	URL          string
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Locators     []Locator    // Defaults to DefaultLocators()
	Client       *http.Client // Optional; Timeout is ignored when set
}

// Fetcher downloads the readings page and extracts the Gospel excerpt.
type Fetcher struct {
	url       string
	userAgent string
	maxBody   int64
	locators  []Locator
	client    *http.Client
	log       *slog.Logger
}

// NewFetcher creates a Fetcher. A nil logger falls back to the process logger.
func NewFetcher(opts Options, log *slog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(opts.Locators) == 0 {
		opts.Locators = DefaultLocators()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if log == nil {
		log = logger.Get()
	}

	return &Fetcher{
		url:       opts.URL,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		locators:  opts.Locators,
		client:    client,
		log:       log.With("component", "fetch"),
	}
}

// URLFor returns the page URL for a date. URLs without a {date} placeholder
// are returned unchanged.
func (f *Fetcher) URLFor(date time.Time) string {
	if !strings.Contains(f.url, datePlaceholder) {
		return f.url
	}
	return strings.ReplaceAll(f.url, datePlaceholder, date.Format(urlDateLayout))
}

// Fetch retrieves the readings page for date and extracts the Gospel passage.
// Errors are *ExtractionError of kind ErrFetchFailed or ErrContentNotFound.
func (f *Fetcher) Fetch(ctx context.Context, date time.Time) (core.ExcerptRecord, error) {
	pageURL := f.URLFor(date)
	start := time.Now()
	f.log.Info("Fetching readings page", "url", pageURL, "date", date.Format(time.DateOnly))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return core.ExcerptRecord{}, fetchFailed(pageURL, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return core.ExcerptRecord{}, fetchFailed(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.ExcerptRecord{}, fetchFailed(pageURL, fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return core.ExcerptRecord{}, fetchFailed(pageURL, fmt.Errorf("failed to read response body: %w", err))
	}

	base := resp.Request.URL
	record, err := f.extract(body, base)
	if err != nil {
		f.log.Warn("No Gospel passage found", "url", pageURL, "bytes", len(body))
		return core.ExcerptRecord{}, contentNotFound(pageURL, err)
	}

	f.log.Info("Extracted Gospel passage",
		"citation", record.Citation,
		"locator", record.Locator,
		"chars", len(record.Body),
		"duration", time.Since(start))
	return record, nil
}

// ExtractHTML runs the configured locators over an already downloaded page.
func (f *Fetcher) ExtractHTML(r io.Reader, pageURL string) (core.ExcerptRecord, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return core.ExcerptRecord{}, contentNotFound(pageURL, err)
	}
	body, err := io.ReadAll(io.LimitReader(r, f.maxBody))
	if err != nil {
		return core.ExcerptRecord{}, fetchFailed(pageURL, err)
	}
	record, err := f.extract(body, base)
	if err != nil {
		return core.ExcerptRecord{}, contentNotFound(pageURL, err)
	}
	return record, nil
}

func (f *Fetcher) extract(body []byte, base *url.URL) (core.ExcerptRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return core.ExcerptRecord{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	record, ok := Extract(doc, base, f.locators)
	if !ok {
		names := make([]string, len(f.locators))
		for i, loc := range f.locators {
			names[i] = loc.Name
		}
		return core.ExcerptRecord{}, fmt.Errorf("no locator matched (tried %s)", strings.Join(names, ", "))
	}
	return record, nil
}
