// Package assistant runs one conversational turn: rewrite the utterance
// against the session history, retrieve and rerank passages, generate a
// grounded answer, clean it, and record the turn.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/docchat/internal/logging"
	"github.com/54b3r/docchat/internal/rag"
	"github.com/54b3r/docchat/internal/session"
	"github.com/54b3r/docchat/internal/tracing"
)

// Pipeline stage names, used as metric labels.
const (
	StageContextualize = "contextualize"
	StageRetrieve      = "retrieve"
	StageGenerate      = "generate"
)

// Retriever returns the reranked passages for a standalone query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, kCandidates, kFinal int) ([]rag.Passage, error)
}

// Config holds the dependencies required to construct a Pipeline.
type Config struct {
	// Contextualizer rewrites follow-ups into standalone queries.
	Contextualizer *Contextualizer
	// Retriever fetches grounding passages.
	Retriever Retriever
	// Generator produces the answer.
	Generator *Generator
	// Sessions stores per-session history.
	Sessions *session.Store
	// CandidateK is the similarity-search depth. Defaults to rag.DefaultCandidateK.
	CandidateK int
	// FinalK is the number of passages kept after reranking. Defaults to
	// rag.DefaultFinalK.
	FinalK int
	// OnStage, when set, is called with the duration of every stage.
	OnStage func(stage string, d time.Duration)
}

// Pipeline is the chat turn orchestrator. It is safe for concurrent use;
// turns of one session are serialised, turns of different sessions run in
// parallel.
type Pipeline struct {
	contextualizer *Contextualizer
	retriever      Retriever
	generator      *Generator
	sessions       *session.Store
	candidateK     int
	finalK         int
	onStage        func(stage string, d time.Duration)
}

// Result is the outcome of one chat turn.
type Result struct {
	// Answer is the cleaned answer shown to the user.
	Answer string
	// Query is the standalone query used for retrieval.
	Query string
	// Passages are the grounding passages supplied to the generator.
	Passages []rag.Passage
}

// New constructs a Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("assistant: config must not be nil")
	}
	if cfg.Contextualizer == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("assistant: contextualizer and generator must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("assistant: retriever must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("assistant: session store must not be nil")
	}
	p := &Pipeline{
		contextualizer: cfg.Contextualizer,
		retriever:      cfg.Retriever,
		generator:      cfg.Generator,
		sessions:       cfg.Sessions,
		candidateK:     cfg.CandidateK,
		finalK:         cfg.FinalK,
		onStage:        cfg.OnStage,
	}
	if p.candidateK <= 0 {
		p.candidateK = rag.DefaultCandidateK
	}
	if p.finalK <= 0 {
		p.finalK = rag.DefaultFinalK
	}
	if p.onStage == nil {
		p.onStage = func(string, time.Duration) {}
	}
	return p, nil
}

// Sessions returns the session store.
func (p *Pipeline) Sessions() *session.Store { return p.sessions }

// Chat runs one turn for sessionID. The steps run strictly in order and the
// session is locked for the whole turn. History is only appended once an
// answer exists, so a failed turn can be retried against the same history.
func (p *Pipeline) Chat(ctx context.Context, sessionID, utterance string) (*Result, error) {
	log := logging.FromContext(ctx).With(slog.String("session_id", sessionID))
	ctx = logging.WithLogger(ctx, log)
	ctx = tracing.WithSession(ctx, sessionID)

	unlock, err := p.sessions.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("assistant: waiting for session %q: %w", sessionID, err)
	}
	defer unlock()

	history, err := p.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	var query string
	err = p.stage(StageContextualize, func() error {
		var err error
		query, err = p.contextualizer.Contextualize(ctx, utterance, history)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug("standalone query", slog.String("query", query), slog.Int("history_turns", len(history)))

	var passages []rag.Passage
	err = p.stage(StageRetrieve, func() error {
		var err error
		passages, err = p.retriever.Retrieve(ctx, query, p.candidateK, p.finalK)
		return err
	})
	if err != nil {
		return nil, err
	}

	var raw string
	err = p.stage(StageGenerate, func() error {
		var err error
		raw, err = p.generator.Generate(ctx, query, passages, history)
		return err
	})
	if err != nil {
		return nil, err
	}

	answer := Clean(raw)
	if err := p.sessions.Append(ctx, sessionID, session.Turn{User: utterance, Assistant: answer}); err != nil {
		// The answer is still valid; the turn is just not remembered.
		log.Warn("history: failed to persist turn", slog.Any("error", err))
	}

	log.Info("chat turn complete",
		slog.Int("passages", len(passages)),
		slog.Bool("rewritten", query != utterance),
	)
	return &Result{Answer: answer, Query: query, Passages: passages}, nil
}

// stage times fn and reports it to the stage hook.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.onStage(name, time.Since(start))
	return err
}
