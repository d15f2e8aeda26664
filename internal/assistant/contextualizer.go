package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/session"
)

// Contextualizer rewrites a follow-up utterance into a standalone query using
// the session history. It never answers the question.
type Contextualizer struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	guard *fault.Guard
}

// NewContextualizer compiles the rewrite chain. An empty instruction selects
// the built-in prompt. guard may be nil.
func NewContextualizer(ctx context.Context, chatModel model.BaseChatModel, instruction string, guard *fault.Guard) (*Contextualizer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("assistant: chat model must not be nil")
	}
	if instruction == "" {
		instruction = defaultContextualizePrompt
	}
	tmpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(escapeBraces(instruction)),
		schema.MessagesPlaceholder(varHistory, true),
		schema.UserMessage("{"+varInput+"}"),
	)
	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tmpl).
		AppendChatModel(chatModel).
		Compile(ctx, compose.WithGraphName("contextualize"))
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to compile contextualize chain: %w", err)
	}
	return &Contextualizer{chain: chain, guard: guard}, nil
}

// Contextualize returns utterance unchanged when history is empty, and the
// model's standalone rewrite otherwise.
func (c *Contextualizer) Contextualize(ctx context.Context, utterance string, history []session.Turn) (string, error) {
	if len(history) == 0 {
		return utterance, nil
	}

	var out *schema.Message
	err := guarded(ctx, c.guard, "assistant.contextualize", func(ctx context.Context) error {
		var err error
		out, err = c.chain.Invoke(ctx, map[string]any{
			varHistory: historyMessages(history),
			varInput:   utterance,
		})
		return fault.Classify(fault.KindGenerationFailure, "assistant.contextualize", err)
	})
	if err != nil {
		return "", fmt.Errorf("assistant: contextualize failed: %w", err)
	}

	query := strings.TrimSpace(out.Content)
	if query == "" {
		return "", fault.New(fault.KindGenerationFailure, "assistant.contextualize", "model returned an empty rewrite")
	}
	return query, nil
}

// historyMessages flattens turns into alternating user/assistant messages.
func historyMessages(turns []session.Turn) []*schema.Message {
	msgs := make([]*schema.Message, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs, schema.UserMessage(t.User), schema.AssistantMessage(t.Assistant, nil))
	}
	return msgs
}

// escapeBraces doubles literal braces so operator-supplied prompt text is not
// parsed as template variables.
func escapeBraces(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}

// guarded runs fn through g, or directly when g is nil.
func guarded(ctx context.Context, g *fault.Guard, op string, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	return g.Do(ctx, op, fn)
}
