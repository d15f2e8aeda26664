package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 400), 100},
		// 8 runes, 14 bytes.
		{"tiếtkiệm", 2},
	}
	for _, tc := range cases {
		if got := Estimate(tc.input); got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"),
		schema.UserMessage("hello world"),
	}
	// Each: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2.
	if got := EstimateMessages(msgs); got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_TrimHistory_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	fixed := []*schema.Message{schema.SystemMessage("sys")}
	history := []*schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantMessage("there", nil),
	}
	if got := TrimHistory(fixed, history, DefaultMaxContextTokens); len(got) != 2 {
		t.Errorf("want 2 history messages, got %d", len(got))
	}
}

func Test_TrimHistory_DropsWholeTurns(t *testing.T) {
	t.Parallel()
	history := []*schema.Message{
		schema.UserMessage("q1"),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("q2"),
		schema.AssistantMessage("a2", nil),
	}
	// user msgs cost 4+1+1 = 6, assistant msgs 4+2+1 = 7. Dropping q1 leaves
	// 20 tokens, which fits, but the orphaned a1 must not lead the result.
	got := TrimHistory(nil, history, 20)
	if len(got) != 2 {
		t.Fatalf("want 2 history messages, got %d", len(got))
	}
	if got[0].Content != "q2" {
		t.Errorf("want history to start with q2, got %q", got[0].Content)
	}
}

func Test_TrimHistory_EmptyHistory(t *testing.T) {
	t.Parallel()
	fixed := []*schema.Message{schema.SystemMessage("sys")}
	if got := TrimHistory(fixed, nil, DefaultMaxContextTokens); len(got) != 0 {
		t.Errorf("want empty, got %d", len(got))
	}
}

func Test_TrimHistory_AllDroppedWhenFixedExceedsBudget(t *testing.T) {
	t.Parallel()
	fixed := []*schema.Message{
		schema.SystemMessage(strings.Repeat("x", 4*7000)),
	}
	history := []*schema.Message{
		schema.UserMessage("a"),
		schema.AssistantMessage("b", nil),
	}
	if got := TrimHistory(fixed, history, 6000); len(got) != 0 {
		t.Errorf("want 0 history messages, got %d", len(got))
	}
}

func Test_FitPassages(t *testing.T) {
	t.Parallel()
	passages := []string{
		strings.Repeat("a", 40), // 10 + 2
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	cases := []struct {
		name  string
		fixed int
		max   int
		want  int
	}{
		{"all fit", 0, 100, 3},
		{"two fit", 0, 24, 2},
		{"keeps one under pressure", 1000, 100, 1},
	}
	for _, tc := range cases {
		if got := FitPassages(tc.fixed, passages, tc.max); got != tc.want {
			t.Errorf("%s: FitPassages = %d, want %d", tc.name, got, tc.want)
		}
	}
	if got := FitPassages(0, nil, 100); got != 0 {
		t.Errorf("FitPassages(nil) = %d, want 0", got)
	}
}
