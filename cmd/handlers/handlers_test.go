package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gospeldiary/internal/config"
	"gospeldiary/internal/fetch"
	"gospeldiary/internal/pipeline"
	"gospeldiary/internal/reflection"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, ExitOK},
		{"fetch failed", &fetch.ExtractionError{Kind: fetch.ErrFetchFailed, URL: "u"}, ExitFetchFailed},
		{"content not found", &fetch.ExtractionError{Kind: fetch.ErrContentNotFound, URL: "u"}, ExitContentNotFound},
		{"template", fmt.Errorf("load: %w", reflection.ErrTemplateMissingPlaceholder), ExitTemplatePlaceholder},
		{"truncated", &reflection.GenerationError{Kind: reflection.ErrOutputTruncated, Err: errors.New("x")}, ExitOutputTruncated},
		{"api", &reflection.GenerationError{Kind: reflection.ErrAPI, Err: errors.New("x")}, ExitAPIError},
		{"delivery", fmt.Errorf("%w: %w", pipeline.ErrDeliveryFailed, errors.New("smtp")), ExitDeliveryFailed},
		{"wrapped fetch", fmt.Errorf("failed to extract: %w", &fetch.ExtractionError{Kind: fetch.ErrFetchFailed}), ExitFetchFailed},
		{"other", errors.New("boom"), ExitOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := ExitCode(tt.err); code != tt.code {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, code, tt.code)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)

	date, err := parseDate("2024-03-09", loc)
	if err != nil {
		t.Fatalf("parseDate failed: %v", err)
	}
	if !date.Equal(time.Date(2024, time.March, 9, 0, 0, 0, 0, loc)) {
		t.Errorf("Unexpected date %v", date)
	}

	today, err := parseDate("", loc)
	if err != nil {
		t.Fatalf("parseDate failed: %v", err)
	}
	if today.Hour() != 0 || today.Location() != loc {
		t.Errorf("Expected midnight in ICT, got %v", today)
	}

	if _, err := parseDate("09/03/2024", loc); err == nil {
		t.Error("Expected error for wrong layout")
	}
}

func TestNewRootCmd(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"run", "fetch", "prompt", "models", "schedule", "serve"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Expected subcommand %q", name)
		}
	}

	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("Expected --config flag")
	}
}

const readingsPage = `<html><body>
<div class="b-verse">
  <div class="content-header"><h3 class="name">Gospel</h3>
    <div class="address"><a href="/bible/matthew/5?1">MT 5:1-12A</a></div></div>
  <div class="content-body"><p>When Jesus saw the crowds, he went up the mountain.</p></div>
</div>
</body></html>`

func geminiReply(finishReason string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":"A quiet reflection."}]},"finishReason":"` + finishReason + `"}]}`
}

// testEnvironment points appConfig at fake readings and Gemini servers.
func testEnvironment(t *testing.T, page string, pageStatus int, geminiStatus int, geminiBody string) *int32 {
	t.Helper()

	readings := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(pageStatus)
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(readings.Close)

	var calls int32
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(geminiStatus)
		_, _ = w.Write([]byte(geminiBody))
	}))
	t.Cleanup(gemini.Close)

	cfg := &config.Config{}
	cfg.App.Timezone = "UTC"
	cfg.Source.URL = readings.URL + "/bible/readings/{date}.cfm"
	cfg.Source.Timeout = 5 * time.Second
	cfg.AI.Provider = "gemini"
	cfg.AI.Gemini = config.Gemini{APIKey: "test-key", Model: "gemini-test", BaseURL: gemini.URL + "/"}
	cfg.Generation = config.Generation{
		InitialBudget:  256,
		MaxRetries:     2,
		BudgetGrowth:   2,
		MaxBudget:      1024,
		Temperature:    0.7,
		AttemptTimeout: 5 * time.Second,
		DateLayout:     "Monday, January 2, 2006",
	}

	previous := appConfig
	appConfig = cfg
	t.Cleanup(func() { appConfig = previous })

	return &calls
}

func TestRunDaily_DryRun(t *testing.T) {
	calls := testEnvironment(t, readingsPage, http.StatusOK, http.StatusOK, geminiReply("STOP"))

	if err := runDaily(context.Background(), "2024-03-09", true); err != nil {
		t.Fatalf("runDaily failed: %v", err)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("Expected 1 model call, got %d", *calls)
	}
}

func TestRunDaily_ExitCodes(t *testing.T) {
	tests := []struct {
		name         string
		page         string
		pageStatus   int
		geminiStatus int
		geminiBody   string
		code         int
		modelCalls   int32
	}{
		{"page missing", "gone", http.StatusNotFound, http.StatusOK, geminiReply("STOP"), ExitFetchFailed, 0},
		{"no gospel", "<html><body><h3>Reading 1</h3><p>text</p></body></html>", http.StatusOK, http.StatusOK, geminiReply("STOP"), ExitContentNotFound, 0},
		{"always truncated", readingsPage, http.StatusOK, http.StatusOK, geminiReply("MAX_TOKENS"), ExitOutputTruncated, 3},
		{"provider error", readingsPage, http.StatusOK, http.StatusUnauthorized, `{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`, ExitAPIError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := testEnvironment(t, tt.page, tt.pageStatus, tt.geminiStatus, tt.geminiBody)

			err := runDaily(context.Background(), "2024-03-09", true)
			if code := ExitCode(err); code != tt.code {
				t.Fatalf("Expected exit code %d, got %d (%v)", tt.code, code, err)
			}
			if got := atomic.LoadInt32(calls); got != tt.modelCalls {
				t.Errorf("Expected %d model calls, got %d", tt.modelCalls, got)
			}
		})
	}
}

func TestRunDaily_RequiresEmailWhenSending(t *testing.T) {
	testEnvironment(t, readingsPage, http.StatusOK, http.StatusOK, geminiReply("STOP"))

	err := runDaily(context.Background(), "2024-03-09", false)
	if err == nil || !strings.Contains(err.Error(), "EMAIL_FROM") {
		t.Errorf("Expected email configuration error, got %v", err)
	}
}

func TestLicenseHeaderOnlyOnRoot(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", name, err)
		}
		hasHeader := strings.HasPrefix(string(data), "/*\nCopyright")
		if want := name == "root.go"; hasHeader != want {
			t.Errorf("%s: license header present = %v, want %v", name, hasHeader, want)
		}
	}
}
