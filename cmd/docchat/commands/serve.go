package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/docchat/internal/contacts"
	"github.com/54b3r/docchat/internal/logging"
	"github.com/54b3r/docchat/internal/server"
	"github.com/54b3r/docchat/internal/tracing"
)

// NewServeCmd constructs the `docchat serve` command, which starts the HTTP
// API consumed by the chat front end.
func NewServeCmd() *cobra.Command {
	var (
		host       string
		port       int
		rateLimit  float64
		rateBurst  int
		trustProxy bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docchat HTTP server",
		Long: `Start the docchat HTTP server.

Endpoints:
  POST /chat        {"session_id", "chat_request"} -> {"chat_response"}
  GET  /sessions    known session identifiers
  POST /user_info   append a contact to the contacts workbook
  GET  /api/health  liveness
  GET  /api/ready   dependency readiness
  GET  /metrics     Prometheus metrics

Examples:
  docchat serve
  docchat serve --host 0.0.0.0 --port 9000
  MODEL_PROVIDER=openai docchat serve`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			defer func() { err = finish(cmd, err) }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush, traced := tracing.Install(tracing.ConfigFromEnv())
			defer flush()
			if traced {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
			}

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)

			st, err := buildStack(ctx, log, metrics.ObserveStage)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer st.Close()

			contactsPath := st.rag.ContactsPath
			if contactsPath == "" {
				contactsPath = contacts.DefaultPath
			}

			srv, err := server.New(st.pipeline, &server.Config{
				Host:        host,
				Port:        port,
				Logger:      log,
				Pingers:     st.pingers,
				RateLimit:   rateLimit,
				RateBurst:   rateBurst,
				TrustProxy:  trustProxy,
				APIKeys:     splitList(os.Getenv("DOCCHAT_API_KEY")),
				CORSOrigins: splitList(os.Getenv("DOCCHAT_CORS_ORIGINS")),
				Contacts:    contacts.NewBook(contactsPath),
				Metrics:     metrics,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", envOr("DOCCHAT_HOST", "127.0.0.1"), "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", envInt("DOCCHAT_PORT", 8000), "TCP port to listen on")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 10, "Sustained requests per second per client on /chat and /user_info")
	cmd.Flags().IntVar(&rateBurst, "rate-burst", 20, "Burst size per client on /chat and /user_info")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Key rate limits on X-Forwarded-For (only behind a trusted proxy)")

	return cmd
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envOr returns the env var value or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the env var parsed as int, or fallback.
func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
