package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Factory builds an unmounted orchestrator for a bearer credential.
type Factory func(token string) *Orchestrator

// Registry keeps one orchestrator per login session. The first dashboard
// request of a session mounts it; logout, reload and idle expiry tear it
// down.
type Registry struct {
	factory Factory
	idle    time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	orch     *Orchestrator
	token    string
	lastUsed time.Time
	ready    chan struct{}
}

// NewRegistry creates a registry. Orchestrators unused for longer than idle
// are closed by Reap.
func NewRegistry(factory Factory, idle time.Duration) *Registry {
	return &Registry{
		factory: factory,
		idle:    idle,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the session's orchestrator, mounting a new one if needed.
// It waits for the initial load to finish or for ctx to end, whichever
// comes first; a caller that stops waiting gets the orchestrator in its
// loading state while the load carries on in the background.
func (r *Registry) Acquire(ctx context.Context, sessionID, token string) (*Orchestrator, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok && (e.token != token || e.orch.Closed()) {
		delete(r.entries, sessionID)
		go e.orch.Close()
		ok = false
	}
	if !ok {
		e = &entry{orch: r.factory(token), token: token, ready: make(chan struct{})}
		r.entries[sessionID] = e
		go r.mount(e)
	}
	e.lastUsed = r.now()
	r.mu.Unlock()

	select {
	case <-e.ready:
	case <-ctx.Done():
	}
	return e.orch, nil
}

func (r *Registry) mount(e *entry) {
	defer close(e.ready)
	if err := e.orch.Mount(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
		slog.Warn("dashboard mount failed", slog.Any("error", err))
	}
}

// Lookup returns the session's orchestrator without mounting one.
func (r *Registry) Lookup(sessionID string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.orch, true
}

// Release closes and forgets the session's orchestrator, if any.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()

	if ok {
		e.orch.Close()
	}
}

// Reload replaces the session's orchestrator with a freshly mounted one.
func (r *Registry) Reload(ctx context.Context, sessionID, token string) (*Orchestrator, error) {
	r.Release(sessionID)
	return r.Acquire(ctx, sessionID, token)
}

// Reap closes orchestrators idle for longer than the idle timeout and
// returns how many were closed.
func (r *Registry) Reap() int {
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var stale []*Orchestrator
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e.orch)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, o := range stale {
		o.Close()
	}
	if len(stale) > 0 {
		slog.Debug("dashboard reaped idle orchestrators", slog.Int("count", len(stale)))
	}
	return len(stale)
}

// Len returns the number of live orchestrators.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run reaps idle orchestrators until ctx is done, then closes the rest.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}

// CloseAll tears down every orchestrator.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e.orch.Close()
	}
}
