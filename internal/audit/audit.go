// Package audit records CLI command invocations: the command, where its
// configuration came from, and a redacted snapshot of the environment, so an
// operator can reconstruct how an ingest or serve run was configured.
//
// Secrets are logged as presence/absence only, never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// secretSuffixes mark env vars whose values are credentials.
var secretSuffixes = []string{"_API_KEY", "_SECRET_KEY", "_PUBLIC_KEY", "_PASSWORD", "_TOKEN"}

// auditKeys is the ordered list of env vars included in every entry.
var auditKeys = []string{
	"MODEL_PROVIDER",
	"OLLAMA_HOST",
	"OLLAMA_MODEL",
	"OPENAI_API_KEY",
	"OPENAI_MODEL",
	"OPENAI_BASE_URL",
	"AZURE_OPENAI_API_KEY",
	"AZURE_OPENAI_ENDPOINT",
	"AZURE_OPENAI_DEPLOYMENT",
	"GOOGLE_API_KEY",
	"GEMINI_MODEL",
	"ARK_API_KEY",
	"ARK_MODEL",
	"EMBEDDING_PROVIDER",
	"EMBEDDING_MODEL",
	"EMBEDDING_ENDPOINT",
	"EMBEDDING_API_KEY",
	"RERANK_PROVIDER",
	"RERANK_MODEL",
	"RERANK_ENDPOINT",
	"RERANK_API_KEY",
	"INDEX_BACKEND",
	"QDRANT_HOST",
	"QDRANT_PORT",
	"QDRANT_COLLECTION",
	"QDRANT_API_KEY",
	"INGEST_MODE",
	"SESSION_BACKEND",
	"SESSION_DB",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"DOCCHAT_API_KEY",
	"PROVIDER_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"LANGFUSE_PUBLIC_KEY",
	"LANGFUSE_SECRET_KEY",
}

// IsSecret reports whether key names a credential.
func IsSecret(key string) bool {
	for _, s := range secretSuffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// SanitiseKey returns "set" or "unset" for secret keys, or the actual value
// for non-secret keys. This is safe to use in log messages.
func SanitiseKey(key, value string) string {
	if IsSecret(key) {
		return presence(value)
	}
	return valOrUnset(value)
}

// LogCommandStart emits an audit entry when a CLI command begins.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	env := make([]any, 0, len(auditKeys))
	for _, key := range auditKeys {
		env = append(env, slog.String(key, SanitiseKey(key, os.Getenv(key))))
	}
	attrs = append(attrs, slog.Group("env", env...))

	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// LogCommandEnd emits an audit entry when a CLI command returns.
func LogCommandEnd(ctx context.Context, log *slog.Logger, command string, started time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.Duration("elapsed", time.Since(started)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	log.LogAttrs(ctx, level, "audit: command end", attrs...)
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path with the home directory
// abbreviated, or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
