package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gospeldiary/internal/core"
	"gospeldiary/internal/email"
	"gospeldiary/internal/fetch"
	"gospeldiary/internal/pipeline"
	"gospeldiary/internal/reflection"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// RunResponse is returned by /api/preview and /run
type RunResponse struct {
	Delivery  core.Delivery `json:"delivery"`
	Attempts  int           `json:"attempts"`
	Budget    int           `json:"budget"`
	Shortened bool          `json:"shortened"`
	Delivered bool          `json:"delivered"`
	Duration  string        `json:"duration"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"delivery": "disabled"}
	if s.runner.CanDeliver() {
		checks["delivery"] = "ok"
	}

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(serverStartTime).Round(time.Second).String(),
		Checks: checks,
	})
}

// handlePreview renders the email for a date without sending it
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.runner.Compose(r.Context(), date)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}

	html, err := email.RenderHTMLEmail(result.Delivery, nil)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// handlePreviewJSON returns the composed delivery as JSON
func (s *Server) handlePreviewJSON(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.runner.Compose(r.Context(), date)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}

	s.respondJSON(w, http.StatusOK, newRunResponse(result, false))
}

// handleRun composes and delivers the email for a date
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.runner.CanDeliver() {
		s.respondError(w, http.StatusServiceUnavailable, errors.New("email delivery is not configured"))
		return
	}

	date, err := s.parseDate(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.runner.Run(r.Context(), date)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}

	s.respondJSON(w, http.StatusOK, newRunResponse(result, true))
}

func newRunResponse(result *pipeline.Result, delivered bool) RunResponse {
	return RunResponse{
		Delivery:  result.Delivery,
		Attempts:  result.Stats.Attempts,
		Budget:    result.Stats.Budget,
		Shortened: result.Stats.Shortened,
		Delivered: delivered,
		Duration:  result.Stats.TotalDuration.Round(time.Millisecond).String(),
	}
}

// parseDate reads ?date=YYYY-MM-DD, defaulting to today in the server's timezone
func (s *Server) parseDate(r *http.Request) (time.Time, error) {
	value := r.URL.Query().Get("date")
	if value == "" {
		now := time.Now().In(s.location)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location), nil
	}

	date, err := time.ParseInLocation("2006-01-02", value, s.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return date, nil
}

// statusFor maps pipeline failures to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, fetch.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, fetch.ErrFetchFailed),
		errors.Is(err, reflection.ErrAPI),
		errors.Is(err, reflection.ErrOutputTruncated),
		errors.Is(err, pipeline.ErrDeliveryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorKind names the failure class for API clients
func errorKind(err error) string {
	switch {
	case errors.Is(err, fetch.ErrFetchFailed):
		return "fetch_failed"
	case errors.Is(err, fetch.ErrContentNotFound):
		return "content_not_found"
	case errors.Is(err, reflection.ErrTemplateMissingPlaceholder):
		return "template_missing_placeholder"
	case errors.Is(err, reflection.ErrOutputTruncated):
		return "output_truncated"
	case errors.Is(err, reflection.ErrAPI):
		return "api_error"
	case errors.Is(err, pipeline.ErrDeliveryFailed):
		return "delivery_failed"
	default:
		return ""
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "status", status, "error", err)
	}
	s.respondJSON(w, status, ErrorResponse{Error: err.Error(), Kind: errorKind(err)})
}
