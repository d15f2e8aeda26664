package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docchat/internal/assistant"
	"github.com/54b3r/docchat/internal/contacts"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed ChatTimeout.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds one whole chat turn. Defaults to 2 minutes.
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks.
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on /chat and
	// /user_info (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// TrustProxy makes the rate limiter key on the first X-Forwarded-For
	// address, for deployments behind the front-end's reverse proxy.
	TrustProxy bool
	// APIKeys are the Bearer tokens accepted on the chat, session and contact
	// routes. Several keys allow rotation. If empty, authentication is
	// disabled.
	APIKeys []string
	// CORSOrigins lists allowed origins. Empty or "*" allows any origin.
	CORSOrigins []string
	// Contacts receives /user_info submissions. If nil the route returns 503.
	Contacts contactRecorder
	// Metrics holds the Prometheus collectors. If nil, a set is registered
	// against MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry is where collectors are registered when Metrics is nil.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// chatter runs one conversational turn. *assistant.Pipeline satisfies it;
// tests inject a fake.
type chatter interface {
	Chat(ctx context.Context, sessionID, utterance string) (*assistant.Result, error)
}

// sessionLister enumerates known session identifiers. *session.Store
// satisfies it.
type sessionLister interface {
	IDs(ctx context.Context) ([]string, error)
}

// contactRecorder persists a contact form submission. *contacts.Book
// satisfies it.
type contactRecorder interface {
	Add(ctx context.Context, c contacts.Contact) error
}

// Server is the HTTP surface over the conversational pipeline.
type Server struct {
	// chat runs chat turns.
	chat chatter
	// sessions lists session identifiers for GET /sessions.
	sessions sessionLister
	// contacts records /user_info submissions.
	contacts contactRecorder
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	// SessionID identifies the conversation.
	SessionID string `json:"session_id"`
	// ChatRequest is the user's utterance.
	ChatRequest string `json:"chat_request"`
}

// chatResponse is the JSON body returned by POST /chat.
type chatResponse struct {
	// ChatResponse is the cleaned answer.
	ChatResponse string `json:"chat_response"`
}

// errorResponse is the JSON body for every failure.
type errorResponse struct {
	// Detail describes the failure.
	Detail string `json:"detail"`
}
