// Package budget estimates prompt sizes and trims what the generator is sent
// so a grounded prompt fits the model's context window. Tokenizers differ per
// backend, so estimates use a character heuristic: 1 token ≈ 4 characters,
// counted in runes so Vietnamese and other non-ASCII text is not inflated.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead is the per-message framing cost in most chat APIs.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Fits 8k-context models with room left for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	runes := utf8.RuneCountInString(s)
	n := runes / charsPerToken
	if n == 0 && runes > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing role, content and framing for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory drops the oldest history messages until fixed + history fits
// within maxTokens. fixed holds messages that are never dropped (system
// prompt, grounding, current question).
//
// History is dropped a turn at a time: a leading assistant message left
// without its question is dropped too, so the kept history always starts
// with a user message. If fixed alone exceeds the budget the result is empty.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)
	trimmed := false
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		history = history[1:]
		trimmed = true
	}
	if trimmed {
		for len(history) > 0 && history[0].Role == schema.Assistant {
			history = history[1:]
		}
	}
	return history
}

// FitPassages returns how many of passages (best first) fit alongside
// fixedTokens within maxTokens. At least one passage is always kept when any
// exist, so a tight budget degrades grounding instead of removing it.
func FitPassages(fixedTokens int, passages []string, maxTokens int) int {
	if len(passages) == 0 {
		return 0
	}
	used := fixedTokens
	for i, p := range passages {
		used += Estimate(p) + 2
		if used > maxTokens {
			return max(i, 1)
		}
	}
	return len(passages)
}
