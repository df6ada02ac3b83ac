package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gospeldiary/internal/core"
	"gospeldiary/internal/logger"
)

// ErrDeliveryFailed marks errors raised after generation succeeded.
var ErrDeliveryFailed = errors.New("delivery failed")

// Pipeline orchestrates the daily run: extract, optionally translate,
// generate, then deliver. Stages run strictly in sequence.
type Pipeline struct {
	extractor  Extractor
	generator  Generator
	translator Translator // Optional
	deliverer  Deliverer  // Optional for Compose, required for Run

	closers []func() error
	log     *slog.Logger
}

// NewPipeline creates a new pipeline with its stages
func NewPipeline(extractor Extractor, generator Generator, translator Translator, deliverer Deliverer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = logger.Get()
	}
	return &Pipeline{
		extractor:  extractor,
		generator:  generator,
		translator: translator,
		deliverer:  deliverer,
		log:        log.With("component", "pipeline"),
	}
}

// Close releases resources opened by the Builder.
func (p *Pipeline) Close() error {
	var errs []error
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CanDeliver reports whether Run has somewhere to send the result.
func (p *Pipeline) CanDeliver() bool {
	return p.deliverer != nil
}

// RunStats tracks timings for one run
type RunStats struct {
	Attempts      int
	Budget        int
	Shortened     bool
	FetchTime     time.Duration
	GenerateTime  time.Duration
	DeliverTime   time.Duration
	TotalDuration time.Duration
}

// Result is the outcome of Compose or Run
type Result struct {
	Delivery core.Delivery
	Stats    RunStats
}

// Compose fetches the excerpt and generates the reflection without delivering.
func (p *Pipeline) Compose(ctx context.Context, date time.Time) (*Result, error) {
	return p.compose(ctx, uuid.NewString(), date)
}

func (p *Pipeline) compose(ctx context.Context, runID string, date time.Time) (*Result, error) {
	log := p.log.With("run_id", runID, "date", date.Format("2006-01-02"))
	start := time.Now()
	var stats RunStats

	log.Info("Fetching gospel excerpt")
	record, err := p.extractor.Fetch(ctx, date)
	if err != nil {
		log.Error("Extraction failed", "error", err)
		return nil, fmt.Errorf("failed to extract gospel excerpt: %w", err)
	}
	stats.FetchTime = time.Since(start)
	log.Info("Excerpt extracted",
		"citation", record.Citation,
		"locator", record.Locator,
		"chars", len(record.Body))

	translation := ""
	if p.translator != nil {
		translation, err = p.translator.Translate(ctx, record.Citation)
		if err != nil {
			// Enrichment only; the run continues without it.
			log.Warn("Translation unavailable", "citation", record.Citation, "error", err)
			translation = ""
		}
	}

	genStart := time.Now()
	result, err := p.generator.Generate(ctx, record, date)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reflection: %w", err)
	}
	stats.GenerateTime = time.Since(genStart)
	stats.Attempts = result.Attempts
	stats.Budget = result.Budget
	stats.Shortened = result.Shortened

	delivery := core.NewDelivery(runID, date, record, result.Text, result.Model)
	delivery.Translation = translation
	stats.TotalDuration = time.Since(start)

	return &Result{Delivery: delivery, Stats: stats}, nil
}

// Run composes the day's delivery and hands it to the deliverer. Nothing is
// delivered unless every earlier stage succeeded.
func (p *Pipeline) Run(ctx context.Context, date time.Time) (*Result, error) {
	if p.deliverer == nil {
		return nil, errors.New("no deliverer configured")
	}

	runID := uuid.NewString()
	start := time.Now()

	result, err := p.compose(ctx, runID, date)
	if err != nil {
		return nil, err
	}

	deliverStart := time.Now()
	if err := p.deliverer.Deliver(ctx, result.Delivery); err != nil {
		p.log.Error("Delivery failed", "run_id", runID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	result.Stats.DeliverTime = time.Since(deliverStart)
	result.Stats.TotalDuration = time.Since(start)

	p.log.Info("Run completed",
		"run_id", runID,
		"citation", result.Delivery.Citation,
		"attempts", result.Stats.Attempts,
		"duration", result.Stats.TotalDuration)

	return result, nil
}
