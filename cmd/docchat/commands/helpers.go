package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/docchat/internal/assistant"
	"github.com/54b3r/docchat/internal/config"
	"github.com/54b3r/docchat/internal/embedder"
	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/modelhttp"
	"github.com/54b3r/docchat/internal/provider"
	"github.com/54b3r/docchat/internal/rag"
	"github.com/54b3r/docchat/internal/reranker"
	"github.com/54b3r/docchat/internal/server"
	"github.com/54b3r/docchat/internal/session"
)

// stack is the set of long-lived dependencies shared by serve and ask.
type stack struct {
	rag      *config.RAG
	pipeline *assistant.Pipeline
	pingers  []server.Pinger
	closers  []func() error
}

// Close releases every dependency in reverse construction order.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// loadRAG reads and validates the pipeline configuration.
func loadRAG() (*config.RAG, error) {
	rc, err := config.RAGFromEnv()
	if err != nil {
		return nil, err
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

// buildEmbedder constructs the embedding provider and its readiness probe.
func buildEmbedder(ctx context.Context, log *slog.Logger) (rag.Embedder, server.Pinger, error) {
	cfg := embedder.ConfigFromEnv()
	embedder.WarnMisconfig(log, cfg)

	emb, err := embedder.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", cfg.Backend),
		slog.String("model", emb.Model()),
	)

	var pinger server.Pinger
	switch cfg.Backend {
	case "ollama":
		pinger = server.NewHTTPPinger("embedder", modelhttp.JoinURL(cfg.Endpoint, "/api/tags"), nil)
	case "tei":
		pinger = server.NewHTTPPinger("embedder", modelhttp.JoinURL(cfg.Endpoint, "/health"), modelhttp.Bearer(cfg.APIKey))
	}
	return emb, pinger, nil
}

// buildIndex connects the configured vector index.
func buildIndex(ctx context.Context, rc *config.RAG, log *slog.Logger) (rag.VectorStore, server.Pinger, error) {
	if rc.Index.Backend == config.IndexMemory {
		log.Warn("using in-process vector index; contents are lost on exit")
		return rag.NewMemoryStore(), nil, nil
	}
	store, err := rag.NewQdrantStore(ctx, rc.QdrantConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", rc.Index.Host, rc.Index.Port, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", rc.Index.Host),
		slog.Int("port", rc.Index.Port),
		slog.String("collection", rc.Index.Collection),
	)
	return store, store, nil
}

// buildStack wires the whole conversational pipeline. onStage may be nil.
func buildStack(ctx context.Context, log *slog.Logger, onStage func(string, time.Duration)) (*stack, error) {
	rc, err := loadRAG()
	if err != nil {
		return nil, err
	}
	st := &stack{rag: rc}
	ok := false
	defer func() {
		if !ok {
			st.Close()
		}
	}()

	emb, embPinger, err := buildEmbedder(ctx, log)
	if err != nil {
		return nil, err
	}
	if embPinger != nil {
		st.pingers = append(st.pingers, embPinger)
	}

	index, indexPinger, err := buildIndex(ctx, rc, log)
	if err != nil {
		return nil, err
	}
	st.closers = append(st.closers, index.Close)
	if indexPinger != nil {
		st.pingers = append(st.pingers, indexPinger)
	}

	rerankCfg := reranker.ConfigFromEnv()
	rr, err := reranker.New(rerankCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise reranker: %w", err)
	}
	if rerankCfg.Backend == "tei" {
		st.pingers = append(st.pingers,
			server.NewHTTPPinger("reranker", modelhttp.JoinURL(rerankCfg.Endpoint, "/health"), modelhttp.Bearer(rerankCfg.APIKey)))
	}
	log.Info("reranker initialised", slog.String("provider", rerankCfg.Backend), slog.String("model", rerankCfg.Model))

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	if providerCfg.Backend == provider.BackendOllama {
		st.pingers = append(st.pingers,
			server.NewHTTPPinger("ollama", modelhttp.JoinURL(providerCfg.Ollama.Host, "/api/tags"), nil))
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	sessions, err := session.Open(ctx, session.ConfigFromEnv(rc.HistoryTurns))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	st.closers = append(st.closers, sessions.Close)
	if p, isPinger := sessions.Backend().(server.Pinger); isPinger {
		st.pingers = append(st.pingers, p)
	}

	systemPrompt, contextualizePrompt, err := rc.Prompts()
	if err != nil {
		return nil, err
	}

	llmGuard := fault.NewGuard("llm", rc.CallTimeout, log)

	contextualizer, err := assistant.NewContextualizer(ctx, chatModel, contextualizePrompt, llmGuard)
	if err != nil {
		return nil, err
	}
	generator, err := assistant.NewGenerator(ctx, &assistant.GeneratorConfig{
		ChatModel:        chatModel,
		SystemPrompt:     systemPrompt,
		Organization:     rc.Organization,
		AnswerSentences:  rc.AnswerSentences,
		MaxContextTokens: rc.MaxContextTokens,
		Guard:            llmGuard,
	})
	if err != nil {
		return nil, err
	}
	retriever, err := rag.NewRetriever(&rag.RetrieverConfig{
		Embedder:    emb,
		Store:       index,
		Reranker:    rr,
		EmbedGuard:  fault.NewGuard("embedder", rc.CallTimeout, log),
		SearchGuard: fault.NewGuard("index", rc.CallTimeout, log),
		RerankGuard: fault.NewGuard("reranker", rc.CallTimeout, log),
	})
	if err != nil {
		return nil, err
	}

	st.pipeline, err = assistant.New(&assistant.Config{
		Contextualizer: contextualizer,
		Retriever:      retriever,
		Generator:      generator,
		Sessions:       sessions,
		CandidateK:     rc.CandidateK,
		FinalK:         rc.FinalK,
		OnStage:        onStage,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return st, nil
}
