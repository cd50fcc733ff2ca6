// Package api exposes the profile engine over HTTP for the collaborating
// chat and resume services, plus an MCP surface for LLM-driven consumers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/persona/internal/narrative"
	"github.com/kalambet/persona/internal/storage"
)

const maxBodySize = 1 << 20 // 1MB

// Synthesizer rebuilds a profile synchronously; used for first-touch reads.
type Synthesizer interface {
	Synthesize(ctx context.Context, username string) (storage.Profile, error)
}

// UpdateQueue accepts asynchronous rebuild triggers.
type UpdateQueue interface {
	Enqueue(username string) bool
}

type AppDeps struct {
	Store       storage.Store
	Synthesizer Synthesizer
	Queue       UpdateQueue
	Logger      *slog.Logger
}

// NewAppHandler builds the HTTP router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Route("/user/{username}", func(r chi.Router) {
		r.Get("/profile", handleGetProfile(deps))
		r.Get("/report", handleGetReport(deps))
		r.Get("/stats", handleGetStats(deps))
		r.Get("/context", handleGetContext(deps))
		r.Get("/resume-summary", handleGetResumeSummary(deps))
		r.Post("/update", handleTriggerUpdate(deps))
		r.Post("/interactions", handlePostInteraction(deps))
		r.Post("/analyses", handlePostAnalysis(deps))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadProfile returns the stored profile, synthesizing one on first touch.
// Users with no interactions still get a neutral default profile rather
// than a 404.
func loadProfile(ctx context.Context, deps AppDeps, username string) (storage.Profile, error) {
	if err := storage.ValidateUsername(username); err != nil {
		return storage.Profile{}, err
	}
	p, err := deps.Store.GetProfile(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return deps.Synthesizer.Synthesize(ctx, username)
	}
	if err != nil {
		return storage.Profile{}, err
	}
	return *p, nil
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := loadProfile(r.Context(), deps, chi.URLParam(r, "username"))
		if err != nil {
			apiError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleGetReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := loadProfile(r.Context(), deps, chi.URLParam(r, "username"))
		if err != nil {
			apiError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"username": p.Username,
			"profile":  p,
			"report":   narrative.Report(p),
		})
	}
}

func handleGetStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		if err := storage.ValidateUsername(username); err != nil {
			apiError(w, deps.Logger, err)
			return
		}
		stats, err := deps.Store.Stats(r.Context(), username)
		if err != nil {
			apiError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleGetContext(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := loadProfile(r.Context(), deps, chi.URLParam(r, "username"))
		if err != nil {
			apiError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"username":    p.Username,
			"context":     narrative.PersonalizationContext(p),
			"personalize": narrative.ShouldPersonalize(p),
		})
	}
}

func handleGetResumeSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := loadProfile(r.Context(), deps, chi.URLParam(r, "username"))
		if err != nil {
			apiError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"username": p.Username,
			"summary":  narrative.ResumeChatSummary(p),
		})
	}
}

func handleTriggerUpdate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		if err := storage.ValidateUsername(username); err != nil {
			apiError(w, deps.Logger, err)
			return
		}
		deps.Queue.Enqueue(username)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

// InteractionRequest is the chat service's append payload.
type InteractionRequest struct {
	Role      string     `json:"role"`
	Message   string     `json:"message"`
	Topics    []string   `json:"topics,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func handlePostInteraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InteractionRequest
		if !decodeBody(w, r, deps.Logger, &req) {
			return
		}
		rec := storage.Interaction{
			Username:  chi.URLParam(r, "username"),
			Kind:      storage.KindChat,
			Timestamp: orNow(req.Timestamp),
			Chat: &storage.ChatTurn{
				Role:    req.Role,
				Message: req.Message,
				Topics:  req.Topics,
			},
		}
		appendInteraction(w, r, deps, &rec)
	}
}

// AnalysisRequest is the resume service's append payload.
type AnalysisRequest struct {
	Score      float64    `json:"score"`
	TargetRole string     `json:"target_role,omitempty"`
	Feedback   string     `json:"feedback,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

func handlePostAnalysis(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalysisRequest
		if !decodeBody(w, r, deps.Logger, &req) {
			return
		}
		rec := storage.Interaction{
			Username:  chi.URLParam(r, "username"),
			Kind:      storage.KindResume,
			Timestamp: orNow(req.Timestamp),
			Resume: &storage.ResumeAnalysis{
				Score:      req.Score,
				TargetRole: req.TargetRole,
				Feedback:   req.Feedback,
			},
		}
		appendInteraction(w, r, deps, &rec)
	}
}

func appendInteraction(w http.ResponseWriter, r *http.Request, deps AppDeps, rec *storage.Interaction) {
	if err := deps.Store.Append(r.Context(), rec); err != nil {
		apiError(w, deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "recorded",
		"id":     rec.ID,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func orNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now().UTC()
}

// apiError maps storage errors onto the wire error format.
func apiError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *storage.ValidationError
	switch {
	case errors.As(err, &verr):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s: %s", verr.Field, verr.Reason)
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, storage.ErrConflict):
		httpError(w, http.StatusServiceUnavailable, "upstream_unavailable", "storage is busy, retry the request")
	default:
		logger.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
