package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/browser"
	"github.com/xkilldash9x/uxpilot/internal/graph"
	"github.com/xkilldash9x/uxpilot/internal/imagestore"
	"github.com/xkilldash9x/uxpilot/internal/observability"
	"github.com/xkilldash9x/uxpilot/internal/service"
)

const healthTimeout = 5 * time.Second

// RunStarter validates a request and reserves the browser for it.
type RunStarter interface {
	Prepare(ctx context.Context, req schemas.RunRequest) (*service.Run, error)
}

// BrowserControl is the part of the browser manager the API exposes.
type BrowserControl interface {
	Navigate(ctx context.Context, url string) error
	Healthy(ctx context.Context) error
	Busy() bool
}

// ImageLoader resolves stored screenshots.
type ImageLoader interface {
	Load(ctx context.Context, key string) ([]byte, error)
}

// Handlers implements the HTTP API.
type Handlers struct {
	runs    RunStarter
	browser BrowserControl
	images  ImageLoader
	metrics http.Handler
	log     *zap.Logger
}

// NewHandlers creates the API handlers. metrics may be nil.
func NewHandlers(runs RunStarter, browser BrowserControl, images ImageLoader, metrics http.Handler, logger *zap.Logger) *Handlers {
	return &Handlers{
		runs:    runs,
		browser: browser,
		images:  images,
		metrics: metrics,
		log:     logger.Named("handlers"),
	}
}

// RegisterRoutes mounts the API on r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/browser", h.HandleRun)
		r.Post("/browser/url", h.HandleSetURL)
		r.Get("/images/*", h.HandleImage)
	})
}

// HandleHealthCheck reports whether the shared browser answers.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.browser.Healthy(ctx); err != nil {
		h.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "degraded",
			"browser": err.Error(),
		})
		return
	}
	state := "connected"
	if h.browser.Busy() {
		state = "busy"
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "browser": state})
}

// HandleRun starts a run and streams its progress. Validation and browser
// reservation happen before the stream opens so they can fail with a plain
// status code.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req schemas.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx := r.Context()
	run, err := h.runs.Prepare(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			h.respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, browser.ErrBrowserBusy):
			h.respondWithError(w, http.StatusConflict, err.Error())
		case ctx.Err() != nil:
			h.log.Info("Client went away while waiting for the browser.")
		default:
			h.log.Error("Failed to start run", zap.Error(err))
			h.respondWithError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}
	defer run.Release()

	logger := observability.ForRun(h.log, run.ID())
	stream, err := openEventStream(w)
	if err != nil {
		logger.Error("Cannot stream run events", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	emit := func(ev graph.Event) {
		var payload interface{}
		switch {
		case ev.Step != nil:
			payload = ev.Step
		case ev.Kind == graph.EventSummaryStarted:
			payload = schemas.StatusEvent{Type: schemas.EventGeneratingSummary}
		default:
			return
		}
		if err := stream.send(payload, false); err != nil {
			logger.Debug("Dropping event for closed stream", zap.Error(err))
		}
	}

	outcome, err := run.Execute(ctx, emit)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("Run cancelled by client disconnect.")
			return
		}
		logger.Warn("Run failed", zap.Error(err))
		if sendErr := stream.send(schemas.ErrorEvent{Error: err.Error()}, true); sendErr != nil {
			logger.Debug("Failed to send error event", zap.Error(sendErr))
		}
		return
	}

	achieved := outcome.Achieved
	final := schemas.StatusEvent{Type: schemas.EventFinal, Answer: outcome.Answer, Achieved: &achieved}
	if err := stream.send(final, true); err != nil {
		logger.Debug("Failed to send final event", zap.Error(err))
	}
}

// HandleSetURL navigates the shared page before a run.
func (h *Handlers) HandleSetURL(w http.ResponseWriter, r *http.Request) {
	var req schemas.SetURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		h.respondWithError(w, http.StatusBadRequest, "url is required")
		return
	}

	if err := h.browser.Navigate(r.Context(), url); err != nil {
		if errors.Is(err, browser.ErrBrowserBusy) {
			h.respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Warn("Failed to set browser URL", zap.String("url", url), zap.Error(err))
		h.respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "url": url})
}

// HandleImage serves a stored screenshot by key.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	data, err := h.images.Load(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, imagestore.ErrInvalidKey):
			h.respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, imagestore.ErrNotFound):
			h.respondWithError(w, http.StatusNotFound, err.Error())
		default:
			h.log.Error("Failed to load image", zap.String("key", key), zap.Error(err))
			h.respondWithError(w, http.StatusInternalServerError, "failed to load image")
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Debug("Failed to write image", zap.Error(err))
	}
}

func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, schemas.ErrorEvent{Error: message})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
