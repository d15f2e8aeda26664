// Package tracing wires Langfuse into every eino chain the assistant runs.
// Tracing is opt-in: without both Langfuse keys the package is inert.
package tracing

import (
	"context"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/docchat/internal/version"
)

// defaultHost is the self-hosted Langfuse address used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// traceName labels every trace emitted by this service.
const traceName = "docchat"

// Config holds Langfuse connection settings.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY.
func ConfigFromEnv() *Config {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}
	return &Config{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// Enabled reports whether both keys are present.
func (c *Config) Enabled() bool {
	return c != nil && c.PublicKey != "" && c.SecretKey != ""
}

// Setup builds the Langfuse callback handler. The returned flush function
// must be called before process exit so buffered traces are sent. When
// tracing is not configured it returns (nil, nil, false).
func Setup(cfg *Config) (callbacks.Handler, func(), bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      traceName,
		Release:   version.Version,
	})
	return handler, flusher, true
}

// Install registers the handler globally so every compiled chain reports to
// Langfuse, and returns the flush function. It is a no-op returning a no-op
// flush when tracing is disabled.
func Install(cfg *Config) (flush func(), enabled bool) {
	handler, flusher, ok := Setup(cfg)
	if !ok {
		return func() {}, false
	}
	callbacks.AppendGlobalHandlers(handler)
	return flusher, true
}

// WithSession tags traces started from ctx with the chat session, so all
// model calls of one conversation group together in Langfuse.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return langfuse.SetTrace(ctx, langfuse.WithSessionID(sessionID))
}
