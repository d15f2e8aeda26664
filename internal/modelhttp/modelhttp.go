// Package modelhttp is the JSON-over-HTTP client shared by the embedding and
// reranking backends that talk to self-hosted or hosted model servers
// (Ollama, OpenAI/Azure, text-embeddings-inference, Cohere-compatible).
package modelhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
	// Message is the server's error message, if one could be extracted.
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// Client posts JSON requests for one backend. It is safe for concurrent use.
type Client struct {
	name   string
	header http.Header
	http   *http.Client
}

// New returns a Client whose errors are prefixed with name. header is sent
// with every request; timeout is the transport ceiling, per-call deadlines
// come from ctx.
func New(name string, timeout time.Duration, header http.Header) *Client {
	if header == nil {
		header = http.Header{}
	}
	return &Client{name: name, header: header, http: &http.Client{Timeout: timeout}}
}

// Bearer returns a header carrying an Authorization bearer token, or an empty
// header when token is empty.
func Bearer(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// JoinURL joins a base URL and a path without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// PostJSON sends in as JSON to url and decodes a 2xx response body into out.
// A non-2xx response yields a *StatusError wrapped with the client name.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: %w", c.name, &StatusError{Code: resp.StatusCode, Message: errorMessage(body)})
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// errorMessage extracts the message from the error shapes model servers use:
// {"error":"..."}, {"error":{"message":"..."}} and {"message":"..."}.
func errorMessage(body []byte) string {
	var shape struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &shape) != nil {
		return ""
	}
	if len(shape.Error) > 0 {
		var s string
		if json.Unmarshal(shape.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(shape.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return shape.Message
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
