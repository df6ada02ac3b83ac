package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"gospeldiary/internal/config"
	"gospeldiary/internal/email"
	"gospeldiary/internal/fetch"
	"gospeldiary/internal/llm"
	"gospeldiary/internal/logger"
	"gospeldiary/internal/reflection"
	"gospeldiary/internal/store"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	cfg          *config.Config
	log          *slog.Logger
	backend      llm.Backend
	deliverer    Deliverer
	skipDelivery bool
}

// NewBuilder creates a new pipeline builder for cfg
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// WithLogger sets the logger passed to every stage
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// WithBackend sets the LLM backend instead of building one from config
func (b *Builder) WithBackend(backend llm.Backend) *Builder {
	b.backend = backend
	return b
}

// WithDeliverer sets the deliverer instead of building one from config
func (b *Builder) WithDeliverer(deliverer Deliverer) *Builder {
	b.deliverer = deliverer
	return b
}

// WithoutDelivery skips email configuration; the pipeline can only Compose
func (b *Builder) WithoutDelivery() *Builder {
	b.skipDelivery = true
	return b
}

// Build constructs the Pipeline. The caller must Close it.
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	log := b.log
	if log == nil {
		log = logger.Get()
	}

	tmpl, err := reflection.LoadTemplate(b.cfg.Generation.TemplatePath)
	if err != nil {
		return nil, err
	}

	backend := b.backend
	if backend == nil {
		if err := b.cfg.ValidateAI(); err != nil {
			return nil, err
		}
		backend, err = llm.NewBackend(ctx, b.cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM backend: %w", err)
		}
	}

	deliverer := b.deliverer
	if deliverer == nil && !b.skipDelivery {
		if err := b.cfg.ValidateEmail(); err != nil {
			return nil, err
		}
		sender, err := email.NewSender(b.cfg.Email)
		if err != nil {
			return nil, err
		}
		deliverer = email.NewMailer(sender, nil, log)
	}

	fetcher := fetch.NewFetcher(fetch.Options{
		URL:       b.cfg.Source.URL,
		Timeout:   b.cfg.Source.Timeout,
		UserAgent: b.cfg.Source.UserAgent,
	}, log)

	generator := reflection.NewGenerator(backend,
		reflection.NewConfig(b.cfg.Generation, b.cfg.AI.ModelName(), tmpl), log)

	var translator Translator
	var bible *store.Store
	if path := b.cfg.Scripture.DatabasePath; path != "" {
		bible, err = store.Open(path)
		if err != nil {
			log.Warn("Vietnamese translation disabled", "path", path, "error", err)
		} else {
			translator = bible
		}
	}

	p := NewPipeline(fetcher, generator, translator, deliverer, log)
	if bible != nil {
		p.closers = append(p.closers, bible.Close)
	}
	return p, nil
}
