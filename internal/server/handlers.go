package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/docchat/internal/contacts"
	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/logging"
)

// maxBodyBytes caps request bodies on the JSON endpoints.
const maxBodyBytes = 64 << 10

// handleChat handles POST /chat. Every pipeline failure, whatever its kind,
// becomes a 500 with a detail message; the kind is kept for logs and metrics.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body", log)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.ChatRequest) == "" {
		writeDetail(w, http.StatusBadRequest, "session_id and chat_request are required", log)
		return
	}

	s.metrics.chatInflight.Inc()
	defer s.metrics.chatInflight.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.chat.Chat(ctx, req.SessionID, req.ChatRequest)
	outcome := "ok"
	if err != nil {
		outcome = string(fault.KindOf(err))
		if errors.Is(err, context.DeadlineExceeded) && outcome == string(fault.KindUnknown) {
			outcome = string(fault.KindProviderTimeout)
		}
	}
	elapsed := time.Since(start)
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if err != nil {
		log.Error("chat turn failed",
			slog.String("session_id", req.SessionID),
			slog.String("kind", outcome),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
		writeDetail(w, http.StatusInternalServerError, err.Error(), log)
		return
	}

	log.Info("chat turn",
		slog.String("session_id", req.SessionID),
		slog.Int("passages", len(res.Passages)),
		slog.Duration("duration", elapsed),
	)
	writeJSON(w, http.StatusOK, chatResponse{ChatResponse: res.Answer}, log)
}

// handleSessions handles GET /sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	ids, err := s.sessions.IDs(r.Context())
	if err != nil {
		log.Error("list sessions failed", slog.Any("error", err))
		writeDetail(w, http.StatusInternalServerError, "failed to list sessions", log)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids, log)
}

// handleUserInfo handles POST /user_info: the contact is appended to the
// workbook and echoed back.
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.contacts == nil {
		writeDetail(w, http.StatusServiceUnavailable, "contact storage is not configured", log)
		return
	}

	var c contacts.Contact
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&c); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body", log)
		return
	}
	if err := c.Validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error(), log)
		return
	}

	if err := s.contacts.Add(r.Context(), c); err != nil {
		s.metrics.contactsTotal.WithLabelValues("error").Inc()
		log.Error("record contact failed", slog.Any("error", err))
		writeDetail(w, http.StatusInternalServerError, "Internal server error", log)
		return
	}
	s.metrics.contactsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, c, log)
}
