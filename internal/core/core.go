package core

import (
	"strings"
	"time"
)

// ExcerptRecord is the passage pulled from the readings page.
type ExcerptRecord struct {
	Citation   string `json:"citation"`    // Short reference label, e.g. "Mt 5:1-12a"
	SourceLink string `json:"source_link"` // Absolute URL of the passage
	Body       string `json:"body"`        // Normalised text, paragraphs separated by a blank line
	PageURL    string `json:"page_url"`    // Page the record was extracted from
	Locator    string `json:"locator"`     // Locator that produced the record
}

// Complete reports whether every required field is populated.
func (r ExcerptRecord) Complete() bool {
	return strings.TrimSpace(r.Citation) != "" &&
		strings.TrimSpace(r.SourceLink) != "" &&
		strings.TrimSpace(r.Body) != ""
}

// Combined is the citation followed by the body, as injected into the prompt.
func (r ExcerptRecord) Combined() string {
	return r.Citation + "\n\n" + r.Body
}

// Delivery is everything the delivery side needs for one day.
type Delivery struct {
	RunID         string    `json:"run_id"`
	Date          time.Time `json:"date"`
	Citation      string    `json:"citation"`
	SourceLink    string    `json:"source_link"`
	Body          string    `json:"body"`
	PageURL       string    `json:"page_url"`
	GeneratedText string    `json:"generated_text"`
	Translation   string    `json:"translation,omitempty"` // Vietnamese text of the citation, when available
	Model         string    `json:"model"`
}

// NewDelivery bundles an excerpt with its generated reflection.
func NewDelivery(runID string, date time.Time, record ExcerptRecord, generated, model string) Delivery {
	return Delivery{
		RunID:         runID,
		Date:          date,
		Citation:      record.Citation,
		SourceLink:    record.SourceLink,
		Body:          record.Body,
		PageURL:       record.PageURL,
		GeneratedText: generated,
		Model:         model,
	}
}

// Paragraphs splits the excerpt body on blank lines.
func (d Delivery) Paragraphs() []string {
	var out []string
	for _, p := range strings.Split(d.Body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
