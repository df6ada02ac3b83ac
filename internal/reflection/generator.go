package reflection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"gospeldiary/internal/config"
	"gospeldiary/internal/core"
	"gospeldiary/internal/llm"
	"gospeldiary/internal/logger"
)

// Config tunes the generator. It is fixed for the lifetime of a Generator.
type Config struct {
	Model          string
	InitialBudget  int
	MaxRetries     int
	BudgetGrowth   float64
	MaxBudget      int
	ShrinkChars    int
	Temperature    float64
	AttemptTimeout time.Duration
	DateLayout     string
	Template       string
}

// DefaultConfig returns the generator defaults with the built-in template.
func DefaultConfig() Config {
	return Config{
		InitialBudget:  2048,
		MaxRetries:     2,
		BudgetGrowth:   2.0,
		MaxBudget:      16384,
		ShrinkChars:    2500,
		Temperature:    0.7,
		AttemptTimeout: 60 * time.Second,
		DateLayout:     "Monday, January 2, 2006",
		Template:       DefaultTemplate,
	}
}

// NewConfig builds a generator Config from application settings.
func NewConfig(g config.Generation, model, template string) Config {
	return Config{
		Model:          model,
		InitialBudget:  g.InitialBudget,
		MaxRetries:     g.MaxRetries,
		BudgetGrowth:   g.BudgetGrowth,
		MaxBudget:      g.MaxBudget,
		ShrinkChars:    g.ShrinkChars,
		Temperature:    g.Temperature,
		AttemptTimeout: g.AttemptTimeout,
		DateLayout:     g.DateLayout,
		Template:       template,
	}
}

// Result is a successful generation.
type Result struct {
	Text      string
	Attempts  int
	Budget    int  // Budget of the successful call
	Shortened bool // The excerpt body was cut to fit
	Model     string
}

// Generator turns an excerpt into a reflection with bounded retries.
type Generator struct {
	backend llm.Backend
	cfg     Config
	log     *slog.Logger
}

// NewGenerator creates a Generator. Zero-valued numeric settings take their
// defaults; MaxRetries of zero means a single call.
func NewGenerator(backend llm.Backend, cfg Config, log *slog.Logger) *Generator {
	def := DefaultConfig()
	if cfg.InitialBudget <= 0 {
		cfg.InitialBudget = def.InitialBudget
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BudgetGrowth < 1 {
		cfg.BudgetGrowth = def.BudgetGrowth
	}
	if cfg.MaxBudget <= 0 {
		cfg.MaxBudget = def.MaxBudget
	}
	if cfg.MaxBudget < cfg.InitialBudget {
		cfg.MaxBudget = cfg.InitialBudget
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = def.DateLayout
	}
	if log == nil {
		log = logger.Get()
	}

	return &Generator{
		backend: backend,
		cfg:     cfg,
		log:     log.With("component", "reflection", "provider", backend.Name()),
	}
}

// Prompt renders the prompt for the first attempt without calling the backend.
func (g *Generator) Prompt(record core.ExcerptRecord, date time.Time) (string, error) {
	return RenderPrompt(g.cfg.Template, date.Format(g.cfg.DateLayout), record.Combined())
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeTruncated
	outcomeFatal
)

// outcome is the classified result of one backend call.
type outcome struct {
	kind outcomeKind
	resp llm.Response
	err  error
}

func classify(resp llm.Response, err error) outcome {
	if err != nil {
		return outcome{kind: outcomeFatal, err: err}
	}

	switch resp.FinishReason {
	case llm.FinishLength:
		return outcome{kind: outcomeTruncated, resp: resp}
	case llm.FinishStop:
		if strings.TrimSpace(resp.Text) == "" {
			return outcome{kind: outcomeFatal, resp: resp, err: errors.New("empty response from model")}
		}
		return outcome{kind: outcomeSuccess, resp: resp}
	case llm.FinishBlocked:
		return outcome{kind: outcomeFatal, resp: resp, err: errors.New("response blocked by provider")}
	default:
		return outcome{kind: outcomeFatal, resp: resp, err: fmt.Errorf("unexpected finish reason %q", resp.FinishReason)}
	}
}

// Generate produces a reflection for record. At most MaxRetries+1 backend
// calls are made, one after another. Errors are *GenerationError.
func (g *Generator) Generate(ctx context.Context, record core.ExcerptRecord, date time.Time) (Result, error) {
	if err := ValidateTemplate(g.cfg.Template); err != nil {
		return Result{}, err
	}

	dateText := date.Format(g.cfg.DateLayout)
	excerpt := record
	budget := g.cfg.InitialBudget
	shortened := false

	for attempt := 0; ; attempt++ {
		prompt, err := RenderPrompt(g.cfg.Template, dateText, excerpt.Combined())
		if err != nil {
			return Result{}, err
		}

		g.log.Info("Generating reflection",
			"attempt", attempt+1,
			"max_attempts", g.cfg.MaxRetries+1,
			"budget", budget,
			"citation", record.Citation)

		out := classify(g.call(ctx, prompt, budget))

		switch out.kind {
		case outcomeSuccess:
			g.log.Info("Reflection generated",
				"attempt", attempt+1,
				"budget", budget,
				"output_tokens", out.resp.OutputTokens,
				"chars", len(out.resp.Text))
			return Result{
				Text:      strings.TrimSpace(out.resp.Text),
				Attempts:  attempt + 1,
				Budget:    budget,
				Shortened: shortened,
				Model:     firstNonEmpty(out.resp.Model, g.cfg.Model),
			}, nil

		case outcomeFatal:
			g.log.Error("Reflection generation failed", "error", out.err, "attempt", attempt+1, "budget", budget)
			return Result{}, &GenerationError{Kind: ErrAPI, Attempts: attempt + 1, Budget: budget, Err: out.err}

		case outcomeTruncated:
			if attempt >= g.cfg.MaxRetries {
				return Result{}, &GenerationError{
					Kind:     ErrOutputTruncated,
					Attempts: attempt + 1,
					Budget:   budget,
					Err:      fmt.Errorf("model stopped at the %d token limit", budget),
				}
			}

			if attempt+1 == g.cfg.MaxRetries && !shortened && utf8.RuneCountInString(excerpt.Body) > g.cfg.ShrinkChars && g.cfg.ShrinkChars > 0 {
				excerpt.Body, shortened = Shorten(excerpt.Body, g.cfg.ShrinkChars)
				g.log.Warn("Reflection truncated, shortening excerpt",
					"attempt", attempt+1, "budget", budget, "shrink_chars", g.cfg.ShrinkChars)
				continue
			}

			next := g.grow(budget)
			g.log.Warn("Reflection truncated, raising budget",
				"attempt", attempt+1, "budget", budget, "next_budget", next)
			budget = next
		}
	}
}

func (g *Generator) call(ctx context.Context, prompt string, budget int) (llm.Response, error) {
	if g.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()
	}

	return g.backend.Generate(ctx, llm.Request{
		Prompt:          prompt,
		Model:           g.cfg.Model,
		MaxOutputTokens: budget,
		Temperature:     g.cfg.Temperature,
	})
}

func (g *Generator) grow(budget int) int {
	next := int(math.Ceil(float64(budget) * g.cfg.BudgetGrowth))
	if next > g.cfg.MaxBudget {
		next = g.cfg.MaxBudget
	}
	return next
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
