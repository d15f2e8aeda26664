package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"
)

func TestWrap_KeepsExistingKind(t *testing.T) {
	t.Parallel()

	inner := Wrap(KindProviderTimeout, "embed", errors.New("slow"))
	outer := Wrap(KindProviderUnavailable, "retrieve", fmt.Errorf("rag: %w", inner))

	if got := KindOf(outer); got != KindProviderTimeout {
		t.Errorf("KindOf = %q, want %q", got, KindProviderTimeout)
	}
	if !errors.Is(outer, ErrProviderTimeout) {
		t.Error("errors.Is(outer, ErrProviderTimeout) = false, want true")
	}
	if errors.Is(outer, ErrProviderUnavailable) {
		t.Error("errors.Is(outer, ErrProviderUnavailable) = true, want false")
	}
}

func TestWrap_Nil(t *testing.T) {
	t.Parallel()
	if err := Wrap(KindGenerationFailure, "op", nil); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	t.Parallel()
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf = %q, want %q", got, KindUnknown)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	refused := &url.Error{Op: "Post", URL: "http://model:8080/v1/chat",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"model error", errors.New("bad response"), KindGenerationFailure},
		{"connection refused", fmt.Errorf("chain: %w", refused), KindProviderUnavailable},
		{"deadline", context.DeadlineExceeded, KindProviderTimeout},
		{"already classified", Wrap(KindIndexWriteFailure, "op", refused), KindIndexWriteFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(Classify(KindGenerationFailure, "op", tc.err)); got != tc.want {
				t.Errorf("KindOf(Classify) = %s, want %s", got, tc.want)
			}
		})
	}
	if err := Classify(KindGenerationFailure, "op", nil); err != nil {
		t.Errorf("Classify(nil) = %v, want nil", err)
	}
}

func TestGuard_Success(t *testing.T) {
	t.Parallel()

	g := NewGuard("test", time.Second, nil)
	called := false
	err := g.Do(context.Background(), "op", func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected call context to carry a deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !called {
		t.Error("fn was not called")
	}
}

func TestGuard_Timeout(t *testing.T) {
	t.Parallel()

	g := NewGuard("slow", 10*time.Millisecond, nil)
	err := g.Do(context.Background(), "slow.call", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrProviderTimeout) {
		t.Fatalf("want ProviderTimeout, got %v", err)
	}
}

func TestGuard_FailureIsUnavailable(t *testing.T) {
	t.Parallel()

	g := NewGuard("down", time.Second, nil)
	err := g.Do(context.Background(), "down.call", func(context.Context) error {
		return errors.New("connection refused")
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("want ProviderUnavailable, got %v", err)
	}
}

func TestGuard_KeepsClassifiedError(t *testing.T) {
	t.Parallel()

	g := NewGuard("gen", time.Second, nil)
	err := g.Do(context.Background(), "gen.call", func(context.Context) error {
		return New(KindGenerationFailure, "gen", "empty answer")
	})
	if !errors.Is(err, ErrGenerationFailure) {
		t.Fatalf("want GenerationFailure, got %v", err)
	}
}

func TestGuard_BreakerOpens(t *testing.T) {
	t.Parallel()

	g := NewGuard("flaky", time.Second, nil)
	fail := func(context.Context) error { return errors.New("boom") }
	for range 5 {
		_ = g.Do(context.Background(), "flaky.call", fail)
	}

	called := false
	err := g.Do(context.Background(), "flaky.call", func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Error("fn called while breaker should be open")
	}
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("want ProviderUnavailable from open breaker, got %v", err)
	}
}

func TestGuard_CallerCancellation(t *testing.T) {
	t.Parallel()

	g := NewGuard("cancel", time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Do(ctx, "cancel.call", func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
