// Package webhook serves the Alice skill endpoint.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"alice/internal/domain"
	"alice/internal/skills"
)

const maxBodyBytes = 1 << 20

type Dispatcher[S, U any] interface {
	Dispatch(ctx context.Context, in *domain.IncomingMessage[S, U]) (domain.OutgoingMessage[S, U], error)
}

type Config struct {
	Path    string
	SkillID string
	Limiter *RateLimiter
	Health  func(ctx context.Context) error
}

func NewRouter[S, U any](cfg Config, dispatcher Dispatcher[S, U], logger *slog.Logger) http.Handler {
	if cfg.Path == "" {
		cfg.Path = "/v1/alice"
	}
	h := &handler[S, U]{cfg: cfg, dispatcher: dispatcher, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.healthz)
	r.Post(cfg.Path, h.serveSkill)
	return r
}

type handler[S, U any] struct {
	cfg        Config
	dispatcher Dispatcher[S, U]
	logger     *slog.Logger
}

func (h *handler[S, U]) healthz(w http.ResponseWriter, req *http.Request) {
	if h.cfg.Health != nil {
		if err := h.cfg.Health(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *handler[S, U]) serveSkill(w http.ResponseWriter, req *http.Request) {
	requestID := strings.TrimSpace(req.Header.Get("X-Request-Id"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", requestID)
	logger := h.logger.With("request_id", requestID)

	var in domain.IncomingMessage[S, U]
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&in); err != nil {
		logger.Warn("decode webhook request failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if h.cfg.SkillID != "" && in.Session.SkillID != "" && in.Session.SkillID != h.cfg.SkillID {
		logger.Warn("skill id mismatch", "skill_id", in.Session.SkillID)
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "unknown skill"})
		return
	}

	if isPing(in.Request) {
		writeJSON(w, http.StatusOK, domain.Reply[S, U]("pong"))
		return
	}

	if h.cfg.Limiter != nil && !h.cfg.Limiter.Allow(limitKey(in.Session, req)) {
		logger.Warn("webhook rate limited", "user_id", in.Session.UserID)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limited"})
		return
	}

	out, err := h.dispatcher.Dispatch(req.Context(), &in)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, skills.ErrNoHandler) {
			status = http.StatusNotFound
		}
		logger.Error("skill dispatch failed", "session_id", in.Session.SessionID, "error", err)
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}
	if out.Version == "" {
		out.Version = domain.ProtocolVersion
	}

	logger.Info("skill reply",
		"session_id", in.Session.SessionID,
		"message_id", in.Session.MessageID,
		"request_type", string(in.Request.Type),
		"end_session", out.Response.EndSession,
	)
	writeJSON(w, http.StatusOK, out)
}

// Alice probes skills with a "ping" utterance.
func isPing(r domain.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.OriginalUtterance), "ping")
}

func limitKey(s domain.Session, req *http.Request) string {
	if s.UserID != "" {
		return "user:" + s.UserID
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	return "addr:" + host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
