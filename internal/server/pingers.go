package server

import (
	"context"
	"fmt"
	"net/http"
)

// HTTPPinger probes an HTTP dependency (model server, embedding server,
// reranker) with a GET that must answer 2xx. It never spends tokens.
type HTTPPinger struct {
	name   string
	url    string
	header http.Header
	client *http.Client
}

// NewHTTPPinger constructs a pinger for url. header may be nil.
func NewHTTPPinger(name, url string, header http.Header) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, header: header, client: &http.Client{}}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues the GET and checks the status code.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range p.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}
