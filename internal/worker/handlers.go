package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/asklens/internal/analytics"
	"github.com/thebtf/asklens/internal/db"
	"github.com/thebtf/asklens/internal/embedding"
	"github.com/thebtf/asklens/internal/grouping"
	"github.com/thebtf/asklens/pkg/models"
)

// MaxGroupTexts caps the number of texts accepted by a single grouping request.
const MaxGroupTexts = 10000

var (
	errBadRequest       = errors.New("bad request")
	errNoSource         = errors.New("question source not configured")
	errNotReady         = errors.New("service initializing")
	errInitFailed       = errors.New("service initialization failed")
	errMissingTexts     = fmt.Errorf("%w: texts is required", errBadRequest)
	errTooManyTexts     = fmt.Errorf("%w: at most %d texts per request", errBadRequest, MaxGroupTexts)
	errEmptyRequestBody = fmt.Errorf("%w: request body is required", errBadRequest)
)

// GroupRequest is the body of /api/group and /api/dedupe. Threshold and
// MaxGroups fall back to the configured defaults; MaxGroups 0 is unlimited.
type GroupRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
	MaxGroups *int     `json:"max_groups,omitempty"`
	Texts     []string `json:"texts"`
}

// GroupResponse is returned by /api/group and /api/dedupe.
type GroupResponse struct {
	Model     string           `json:"model,omitempty"`
	Clusters  []models.Cluster `json:"clusters"`
	Inputs    int              `json:"inputs"`
	Threshold float64          `json:"threshold"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes data as a 200 JSON response.
func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error. Details of 5xx errors are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("Request failed")
		msg = http.StatusText(status)
		if status == http.StatusServiceUnavailable || status == http.StatusBadGateway {
			msg = publicCause(err)
		}
	}
	writeJSONStatus(w, status, errorResponse{Error: msg, RequestID: GetRequestID(r.Context())})
}

// publicCause names the failing dependency without leaking its details.
func publicCause(err error) string {
	switch {
	case errors.Is(err, grouping.ErrProviderContract):
		return "embedding provider returned an invalid response"
	case errors.Is(err, grouping.ErrEmbeddingFailed):
		return "embedding provider unavailable"
	case errors.Is(err, db.ErrSchemaMissing):
		return "question log not found"
	case errors.Is(err, errNoSource), errors.Is(err, errNotReady):
		return err.Error()
	}
	return "dependency unavailable"
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, grouping.ErrInvalidThreshold),
		errors.Is(err, grouping.ErrInvalidMaxGroups),
		errors.Is(err, analytics.ErrMissingOrg),
		errors.Is(err, models.ErrInvalidTimeRange),
		errors.Is(err, embedding.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, grouping.ErrProviderContract),
		errors.Is(err, grouping.ErrEmbeddingFailed):
		return http.StatusBadGateway
	case errors.Is(err, db.ErrSchemaMissing),
		errors.Is(err, errNoSource):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v interface{}) (int, error) {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return http.StatusRequestEntityTooLarge, errBodyTooLarge
		case errors.Is(err, io.EOF):
			return http.StatusBadRequest, errEmptyRequestBody
		}
		return http.StatusBadRequest, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return 0, nil
}

// handleHealth returns 200 immediately, even during init.
// Use /api/ready for a full readiness check.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	} else if err := s.GetInitError(); err != nil {
		status = "error"
	}
	writeJSON(w, map[string]interface{}{
		"status":  status,
		"version": s.version,
	})
}

// handleVersion returns the worker version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version": s.version,
	})
}

// handleReady returns 200 only when the components are built and the
// question source answers a ping.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		if err := s.GetInitError(); err != nil {
			writeError(w, r, http.StatusInternalServerError, fmt.Errorf("%w: %w", errInitFailed, err))
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, errNotReady)
		return
	}

	comps := s.getComponents()
	if comps.Source != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := comps.Source.Ping(ctx); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("ping question source: %w", err))
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

// requireReady returns 503 until the components are built.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			if err := s.GetInitError(); err != nil {
				writeError(w, r, http.StatusInternalServerError, fmt.Errorf("%w: %w", errInitFailed, err))
				return
			}
			writeError(w, r, http.StatusServiceUnavailable, errNotReady)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleModels lists the registered embedding models.
func (s *Service) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"models": embedding.ListModels(),
		"active": s.getConfig().EmbeddingModel,
	})
}

// readGroupRequest decodes and checks a grouping request. defaultThreshold
// applies when the body carries none.
func readGroupRequest(r *http.Request, defaultThreshold float64) (grouping.Options, []string, int, error) {
	var req GroupRequest
	if status, err := decodeJSON(r, &req); err != nil {
		return grouping.Options{}, nil, status, err
	}
	if req.Texts == nil {
		return grouping.Options{}, nil, http.StatusBadRequest, errMissingTexts
	}
	if len(req.Texts) > MaxGroupTexts {
		return grouping.Options{}, nil, http.StatusBadRequest, errTooManyTexts
	}

	opts := grouping.Options{Threshold: defaultThreshold}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.MaxGroups != nil {
		opts.MaxGroups = *req.MaxGroups
	}
	if err := opts.Validate(); err != nil {
		return grouping.Options{}, nil, http.StatusBadRequest, err
	}
	return opts, req.Texts, 0, nil
}

// handleGroup clusters the posted texts by embedding similarity.
func (s *Service) handleGroup(w http.ResponseWriter, r *http.Request) {
	opts, texts, status, err := readGroupRequest(r, s.getConfig().GroupingThreshold)
	if err != nil {
		writeError(w, r, status, err)
		return
	}

	comps := s.getComponents()
	clusters, err := comps.Grouper.Group(r.Context(), texts, opts)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, GroupResponse{
		Model:     comps.Model.Name(),
		Clusters:  clusters,
		Inputs:    len(texts),
		Threshold: opts.Threshold,
	})
}

// handleDedupe previews grouping by term overlap. It needs no embeddings and
// works before the service is ready.
func (s *Service) handleDedupe(w http.ResponseWriter, r *http.Request) {
	opts, texts, status, err := readGroupRequest(r, grouping.DefaultLexicalThreshold)
	if err != nil {
		writeError(w, r, status, err)
		return
	}

	clusters, err := grouping.Lexical(texts, opts)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, GroupResponse{
		Clusters:  clusters,
		Inputs:    len(texts),
		Threshold: opts.Threshold,
	})
}

// handleAnalytics builds the question report for an organization.
// Optional startDate and endDate accept RFC 3339 timestamps or YYYY-MM-DD
// dates; a date-only endDate includes that whole day.
func (s *Service) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if err := ValidateOrgID(orgID); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	var (
		tr  models.TimeRange
		err error
	)
	if tr.Start, err = models.ParseTimeBound(r.URL.Query().Get("startDate"), false); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if tr.End, err = models.ParseTimeBound(r.URL.Query().Get("endDate"), true); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	comps := s.getComponents()
	if comps.Reporter == nil {
		writeError(w, r, http.StatusServiceUnavailable, errNoSource)
		return
	}

	report, err := comps.Reporter.QuestionReport(r.Context(), orgID, tr)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, report)
}

// handleStats reports uptime, the active model and rate limiter counters.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	cfg := s.getConfig()
	comps := s.getComponents()
	writeJSON(w, map[string]interface{}{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"model": map[string]interface{}{
			"name":       comps.Model.Name(),
			"version":    comps.Model.Version(),
			"dimensions": comps.Model.Dimensions(),
		},
		"embedding_cache": cfg.EmbeddingCache,
		"question_source": cfg.QuestionSource,
		"rate_limit":      s.limiter.Stats(),
	})
}
