package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// WarnMisconfig logs warnings for embedding settings that validate but are
// probably wrong. Ingestion and serving must agree on the model, so the
// resolved model is always logged.
func WarnMisconfig(log *slog.Logger, cfg *Config) {
	if looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: model looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. bge-m3, text-embedding-3-small"),
		)
	}
	log.Info("embedder configured",
		slog.String("backend", cfg.Backend),
		slog.String("model", cfg.Model),
		slog.Int("batch_size", cfg.BatchSize),
	)
}
