package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docchat/internal/budget"
	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/logging"
	"github.com/54b3r/docchat/internal/rag"
	"github.com/54b3r/docchat/internal/session"
)

const (
	// DefaultAnswerSentences bounds the answer length requested from the model.
	DefaultAnswerSentences = 5
	// DefaultOrganization is who the assistant speaks for when unset.
	DefaultOrganization = "CUSC"
)

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel
	// SystemPrompt overrides the built-in grounding prompt. It may reference
	// {organization}, {sentences} and {context}.
	SystemPrompt string
	// Organization names who the assistant speaks for.
	Organization string
	// AnswerSentences is the requested maximum answer length.
	AnswerSentences int
	// MaxContextTokens is the estimated input budget. History is trimmed
	// oldest-first, then passages lowest-ranked-first, to fit.
	MaxContextTokens int
	// Guard bounds model calls. Optional.
	Guard *fault.Guard
}

// Generator produces an answer grounded in retrieved passages.
type Generator struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	organization string
	sentences    int
	maxTokens    int
	guard        *fault.Guard
}

// NewGenerator compiles the answer chain.
func NewGenerator(ctx context.Context, cfg *GeneratorConfig) (*Generator, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, fmt.Errorf("assistant: chat model must not be nil")
	}
	g := &Generator{
		systemPrompt: cfg.SystemPrompt,
		organization: cfg.Organization,
		sentences:    cfg.AnswerSentences,
		maxTokens:    cfg.MaxContextTokens,
		guard:        cfg.Guard,
	}
	if g.systemPrompt == "" {
		g.systemPrompt = defaultSystemPrompt
	}
	if g.organization == "" {
		g.organization = DefaultOrganization
	}
	if g.sentences <= 0 {
		g.sentences = DefaultAnswerSentences
	}
	if g.maxTokens <= 0 {
		g.maxTokens = budget.DefaultMaxContextTokens
	}

	tmpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(g.systemPrompt),
		schema.MessagesPlaceholder(varHistory, true),
		schema.UserMessage("{"+varInput+"}"),
	)
	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tmpl).
		AppendChatModel(cfg.ChatModel).
		Compile(ctx, compose.WithGraphName("generate"))
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to compile generate chain: %w", err)
	}
	g.chain = chain
	return g, nil
}

// Generate answers query from passages, with history as conversational
// context. An unreachable model is reported as ProviderUnavailable, any other
// model failure as a GenerationFailure; there is no fallback answer.
func (g *Generator) Generate(ctx context.Context, query string, passages []rag.Passage, history []session.Turn) (string, error) {
	vars := g.fit(ctx, query, passages, history)

	var out *schema.Message
	err := guarded(ctx, g.guard, "assistant.generate", func(ctx context.Context) error {
		var err error
		out, err = g.chain.Invoke(ctx, vars)
		return fault.Classify(fault.KindGenerationFailure, "assistant.generate", err)
	})
	if err != nil {
		return "", fmt.Errorf("assistant: generate failed: %w", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", fault.New(fault.KindGenerationFailure, "assistant.generate", "model returned an empty answer")
	}
	return out.Content, nil
}

// fit builds the template variables, trimming history and then passages so
// the estimated prompt stays within the token budget.
func (g *Generator) fit(ctx context.Context, query string, passages []rag.Passage, history []session.Turn) map[string]any {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}
	frame := budget.Estimate(g.systemPrompt) + budget.Estimate(query) + 16
	kept := budget.FitPassages(frame, texts, g.maxTokens)
	passages = passages[:kept]

	grounding := formatPassages(passages)
	fixed := []*schema.Message{
		schema.SystemMessage(g.systemPrompt + grounding),
		schema.UserMessage(query),
	}
	all := historyMessages(history)
	trimmed := budget.TrimHistory(fixed, all, g.maxTokens)

	if dropped := len(all) - len(trimmed); dropped > 0 || kept < len(texts) {
		logging.FromContext(ctx).Warn("budget: trimmed prompt to fit context window",
			slog.Int("history_dropped", dropped),
			slog.Int("passages_dropped", len(texts)-kept),
			slog.Int("max_tokens", g.maxTokens),
		)
	}

	return map[string]any{
		varOrganization: g.organization,
		varSentences:    strconv.Itoa(g.sentences),
		varContext:      grounding,
		varHistory:      trimmed,
		varInput:        query,
	}
}

// formatPassages renders passages as numbered excerpts with their source.
func formatPassages(passages []rag.Passage) string {
	if len(passages) == 0 {
		return "(no relevant documents were found)"
	}
	var sb strings.Builder
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] (%s)\n%s", i+1, p.Source, p.Content)
	}
	return sb.String()
}
