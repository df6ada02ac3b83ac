package pipeline

import (
	"context"
	"time"

	"gospeldiary/internal/core"
	"gospeldiary/internal/reflection"
)

// Extractor retrieves the day's Gospel excerpt
type Extractor interface {
	// Fetch returns a complete record or an error classified as
	// fetch.ErrFetchFailed or fetch.ErrContentNotFound
	Fetch(ctx context.Context, date time.Time) (core.ExcerptRecord, error)
}

// Generator turns an excerpt into a reflection
type Generator interface {
	// Generate makes at most MaxRetries+1 sequential model calls
	Generate(ctx context.Context, record core.ExcerptRecord, date time.Time) (reflection.Result, error)
}

// Translator looks up a translation for a citation (optional)
type Translator interface {
	Translate(ctx context.Context, citation string) (string, error)
}

// Deliverer hands a finished delivery to its recipients
type Deliverer interface {
	Deliver(ctx context.Context, d core.Delivery) error
}
