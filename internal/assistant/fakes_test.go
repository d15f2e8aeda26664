package assistant

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docchat/internal/rag"
)

// fakeModel answers with reply and records every prompt it receives.
type fakeModel struct {
	mu    sync.Mutex
	calls [][]*schema.Message
	reply func(ctx context.Context, msgs []*schema.Message) (string, error)
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.mu.Unlock()
	content, err := f.reply(ctx, input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeModel) lastCall() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// isRewrite reports whether msgs is a contextualize prompt.
func isRewrite(msgs []*schema.Message) bool {
	return len(msgs) > 0 && strings.Contains(msgs[0].Content, "Do NOT answer the question")
}

// fakeRetriever records queries and returns fixed passages.
type fakeRetriever struct {
	mu       sync.Mutex
	queries  []string
	passages []rag.Passage
	err      error
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _, _ int) ([]rag.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}
