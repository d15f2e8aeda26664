package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequireKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		keys       []string
		auth       string
		wantCode   int
		wantReason string
		wantChal   string
	}{
		{name: "disabled", keys: nil, wantCode: http.StatusOK},
		{name: "blank keys disable auth", keys: []string{" ", ""}, wantCode: http.StatusOK},
		{name: "missing header", keys: []string{"secret"}, wantCode: http.StatusUnauthorized,
			wantReason: "missing", wantChal: `Bearer realm="docchat"`},
		{name: "basic scheme", keys: []string{"secret"}, auth: "Basic dXNlcjpwYXNz", wantCode: http.StatusUnauthorized,
			wantReason: "missing", wantChal: `Bearer realm="docchat"`},
		{name: "wrong token", keys: []string{"secret"}, auth: "Bearer nope", wantCode: http.StatusUnauthorized,
			wantReason: "invalid", wantChal: `Bearer realm="docchat" error="invalid_token"`},
		{name: "valid token", keys: []string{"secret"}, auth: "Bearer secret", wantCode: http.StatusOK},
		{name: "lowercase scheme", keys: []string{"secret"}, auth: "bearer secret", wantCode: http.StatusOK},
		{name: "rotated key", keys: []string{"new-key", "old-key"}, auth: "Bearer old-key", wantCode: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServerWith(t, func(c *Config) { c.APIKeys = tc.keys })
			h := ts.requireKey("sessions", okHandler)

			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != tc.wantChal {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tc.wantChal)
			}
			if tc.wantReason != "" {
				c := ts.metrics.authRejectedTotal.WithLabelValues("sessions", tc.wantReason)
				if got := testutil.ToFloat64(c); got != 1 {
					t.Errorf("auth_rejected_total{reason=%q} = %v, want 1", tc.wantReason, got)
				}
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer mytoken", "mytoken", true},
		{"BEARER mytoken", "mytoken", true},
		{"Bearer  spaced ", "spaced", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, ok := bearerToken(req)
		if got != tc.want || ok != tc.ok {
			t.Errorf("header=%q: got (%q, %v), want (%q, %v)", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
