// Package session holds per-session conversation history for the chat
// pipeline. A Store wraps a pluggable Backend (memory, SQLite or Redis),
// bounds every read to the most recent turns, and serialises the
// read-modify-append sequence of each session.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultWindow is the number of most recent turns visible on every read.
const DefaultWindow = 10

// Turn is one (user utterance, assistant answer) pair.
type Turn struct {
	// User is the utterance as the user typed it.
	User string `json:"user"`
	// Assistant is the cleaned answer that was returned.
	Assistant string `json:"assistant"`
	// CreatedAt is when the turn was appended.
	CreatedAt time.Time `json:"created_at"`
}

// Backend persists turns keyed by session id. Implementations must be safe
// for concurrent use; the Store provides per-session ordering on top.
type Backend interface {
	// Ensure registers id as a known session. Registering twice is a no-op.
	Ensure(ctx context.Context, id string) error
	// Append stores t as the newest turn of session id, registering id.
	Append(ctx context.Context, id string, t Turn) error
	// Recent returns at most k newest turns of session id, oldest-first.
	// An unknown id yields no turns and no error.
	Recent(ctx context.Context, id string, k int) ([]Turn, error)
	// IDs returns every known session id in any order.
	IDs(ctx context.Context) ([]string, error)
	// Close releases any resources held by the backend.
	Close() error
}

// Store is the conversation history store shared by all chat requests.
type Store struct {
	backend Backend
	window  int

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is a reference-counted mutex usable with a context.
type sessionLock struct {
	ch   chan struct{}
	refs int
}

// NewStore constructs a Store over backend. A window ≤ 0 means DefaultWindow.
func NewStore(backend Backend, window int) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		backend: backend,
		window:  window,
		locks:   make(map[string]*sessionLock),
	}
}

// Window returns the number of turns visible on a read.
func (s *Store) Window() int { return s.window }

// History returns the most recent turns of session id, oldest-first. An
// unseen id is created with an empty history.
func (s *Store) History(ctx context.Context, id string) ([]Turn, error) {
	if err := s.backend.Ensure(ctx, id); err != nil {
		return nil, fmt.Errorf("session: ensure %q: %w", id, err)
	}
	turns, err := s.backend.Recent(ctx, id, s.window)
	if err != nil {
		return nil, fmt.Errorf("session: history %q: %w", id, err)
	}
	return turns, nil
}

// Append records t as the newest turn of session id.
func (s *Store) Append(ctx context.Context, id string, t Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if err := s.backend.Append(ctx, id, t); err != nil {
		return fmt.Errorf("session: append %q: %w", id, err)
	}
	return nil
}

// IDs returns every known session id in ascending order.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	ids, err := s.backend.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: list ids: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Lock acquires exclusive access to session id, waiting until the session is
// free or ctx is done. Requests for different sessions never contend. The
// returned function releases the lock and must be called exactly once.
func (s *Store) Lock(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		s.release(id, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			s.release(id, l)
		})
	}, nil
}

// release drops one reference to l, forgetting it when unused.
func (s *Store) release(id string, l *sessionLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
