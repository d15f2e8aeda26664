package tracing

import (
	"context"
	"os"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "")
	os.Unsetenv("LANGFUSE_HOST")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-test")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	cfg := ConfigFromEnv()
	if cfg.Host != defaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host, defaultHost)
	}
	if cfg.Enabled() {
		t.Error("Enabled() = true with only the public key set")
	}

	cfg.SecretKey = "sk-test"
	if !cfg.Enabled() {
		t.Error("Enabled() = false with both keys set")
	}
}

func TestInstall_Disabled(t *testing.T) {
	t.Parallel()

	flush, enabled := Install(&Config{})
	if enabled {
		t.Fatal("Install reported enabled without keys")
	}
	flush() // must be callable
}

func TestWithSession_ReturnsDerivedContext(t *testing.T) {
	t.Parallel()

	ctx := WithSession(context.Background(), "s-1")
	if ctx == nil {
		t.Fatal("WithSession returned nil context")
	}
}
