package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func Test_Metrics_EndpointExposesDocchatSeries(t *testing.T) {
	t.Parallel()
	ts := newTestServerWith(t)

	do(t, ts.Handler(), http.MethodPost, "/chat", `{"session_id":"s1","chat_request":"hi"}`, nil)
	w := do(t, ts.Handler(), http.MethodGet, "/metrics", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
	body := w.Body.String()
	for _, name := range []string{
		"docchat_chat_requests_total",
		"docchat_chat_duration_seconds",
		"docchat_http_requests_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func Test_Metrics_HTTPRequestsLabelledByHandler(t *testing.T) {
	t.Parallel()
	ts := newTestServerWith(t)

	do(t, ts.Handler(), http.MethodGet, "/sessions", "", nil)
	do(t, ts.Handler(), http.MethodGet, "/sessions", "", nil)

	got := testutil.ToFloat64(ts.metrics.httpRequestsTotal.WithLabelValues(http.MethodGet, "sessions", "200"))
	if got != 2 {
		t.Errorf("sessions counter = %v, want 2", got)
	}
}

func Test_Metrics_ObserveStage(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveStage("retrieve", 120*time.Millisecond)
	m.ObserveStage("generate", time.Second)

	if n := testutil.CollectAndCount(m.stageSeconds, "docchat_pipeline_stage_seconds"); n != 2 {
		t.Errorf("stage series = %d, want 2", n)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveStage("retrieve", time.Second)
}

func Test_Metrics_ContactsCounter(t *testing.T) {
	t.Parallel()
	ts := newTestServerWith(t)

	do(t, ts.Handler(), http.MethodPost, "/user_info", `{"name":"A","phone":"1","email":"a@b.c","address":"x"}`, nil)

	if got := testutil.ToFloat64(ts.metrics.contactsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("contacts ok = %v, want 1", got)
	}
}
