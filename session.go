package bookchat

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// State is the lifecycle position of one keyed session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateCompleted
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no more content will arrive in this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateErrored
}

// Snapshot is a point-in-time copy of one keyed session.
type Snapshot struct {
	Key         string
	State       State
	Text        string
	DownloadURL string

	// Err is set in StateErrored
	Err error
}

// Loading reports whether a transfer is still feeding this session.
func (s Snapshot) Loading() bool {
	return s.State == StateLoading
}

type entry struct {
	gen         uint64
	state       State
	text        strings.Builder
	downloadURL string
	err         error
	done        chan struct{}
}

func (e *entry) snapshot(key string) Snapshot {
	return Snapshot{
		Key:         key,
		State:       e.state,
		Text:        e.text.String(),
		DownloadURL: e.downloadURL,
		Err:         e.err,
	}
}

// finish moves a loading entry to a terminal state.
func (e *entry) finish(state State, err error) {
	e.state = state
	e.err = err
	close(e.done)
}

// transfer is the single in-flight slot of a Manager.
type transfer struct {
	key    string
	gen    uint64
	cancel context.CancelFunc
}

// Manager runs keyed streaming sessions with at most one active transfer at a
// time. Opening a key supersedes whatever transfer is running, even for a
// different key. Completed content is cached per key for the Manager's lifetime;
// partial content from a cancelled or failed transfer stays visible until the
// key is opened again.
//
// Every transfer carries a generation number. Events are applied only while
// their generation is the current one, and the current slot is invalidated
// before a new transfer starts, so a late chunk from an old transfer can never
// land in a newer session.
//
// The update callback runs with the Manager's lock held, in event order. It must
// not call back into the Manager.
type Manager struct {
	streamer Streamer
	onUpdate func(Snapshot)
	logger   *slog.Logger

	mu      sync.Mutex
	gen     uint64
	current *transfer
	entries map[string]*entry
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithUpdateFunc registers a callback invoked after every state or content change.
func WithUpdateFunc(fn func(Snapshot)) ManagerOption {
	return func(m *Manager) { m.onUpdate = fn }
}

// WithManagerLogger sets the structured logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a session manager that starts transfers through s.
func NewManager(s Streamer, opts ...ManagerOption) *Manager {
	m := &Manager{
		streamer: s,
		logger:   slog.New(slog.DiscardHandler),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Open shows key's content, streaming it if needed.
//
// If key already completed, its cached content is returned and no transfer is
// issued. Otherwise the active transfer is cancelled, key starts over from empty
// text and req is sent. A transport failure is returned before any content is
// applied and leaves key in StateErrored. Cancellation while connecting is not an
// error: key ends in StateCancelled and Open returns a nil error.
func (m *Manager) Open(ctx context.Context, key string, req *StreamRequest) (*Session, error) {
	if key == "" {
		return nil, &ValidationError{Field: "key", Value: key, Reason: "session key must not be empty", Err: ErrInvalidRequest}
	}
	if req == nil {
		return nil, &ValidationError{Field: "request", Value: nil, Reason: "stream request is required", Err: ErrInvalidRequest}
	}

	m.mu.Lock()
	if e, ok := m.entries[key]; ok && e.state == StateCompleted {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "session cache hit", "key", key)
		return &Session{m: m, key: key, entry: e, cached: true}, nil
	}

	m.cancelCurrentLocked("superseded")

	m.gen++
	gen := m.gen
	tctx, cancel := context.WithCancel(ctx)
	e := &entry{gen: gen, state: StateLoading, done: make(chan struct{})}
	m.entries[key] = e
	m.current = &transfer{key: key, gen: gen, cancel: cancel}
	m.notifyLocked(key, e)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "session open", "key", key, "route", req.Route, "generation", gen)
	sess := &Session{m: m, key: key, entry: e}

	es, err := m.streamer.Stream(tctx, req)
	if err != nil {
		cancel()
		m.mu.Lock()
		superseded := !m.isCurrentLocked(gen)
		cancelled := !superseded && ctx.Err() != nil
		if !superseded {
			m.current = nil
			if cancelled {
				e.finish(StateCancelled, nil)
			} else {
				e.finish(StateErrored, err)
			}
			m.notifyLocked(key, e)
		}
		m.mu.Unlock()

		if superseded || cancelled {
			// Cancelled while connecting, by a newer Open, Close or the caller.
			m.logger.DebugContext(ctx, "session cancelled while connecting", "key", key)
			return sess, nil
		}
		m.logger.WarnContext(ctx, "session failed to start", "key", key, "error", err)
		return sess, err
	}

	go m.pump(key, e, es)
	return sess, nil
}

// pump applies one transfer's events while it is still the current one.
func (m *Manager) pump(key string, e *entry, es *EventStream) {
	defer es.Close()

	for ev := range es.Events() {
		m.mu.Lock()
		if !m.isCurrentLocked(e.gen) {
			m.mu.Unlock()
			return
		}
		switch ev.Kind {
		case EventText:
			e.text.WriteString(ev.Text)
		case EventMeta:
			e.downloadURL = ev.DownloadURL
		}
		m.notifyLocked(key, e)
		m.mu.Unlock()
	}

	err := es.Err()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isCurrentLocked(e.gen) {
		return
	}
	m.current.cancel()
	m.current = nil

	switch {
	case err == nil:
		e.finish(StateCompleted, nil)
		m.logger.Debug("session completed", "key", key, "bytes", e.text.Len())
	case errors.Is(err, context.Canceled):
		e.finish(StateCancelled, nil)
		m.logger.Debug("session cancelled", "key", key)
	default:
		e.finish(StateErrored, err)
		m.logger.Warn("session stream failed", "key", key, "error", err)
	}
	m.notifyLocked(key, e)
}

// Close cancels the active transfer, if any. Cached content is kept.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCurrentLocked("closed")
}

// Active returns the key of the running transfer.
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", false
	}
	return m.current.key, true
}

// Snapshot returns the latest state of key.
func (m *Manager) Snapshot(key string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Snapshot{Key: key, State: StateIdle}, false
	}
	return e.snapshot(key), true
}

// Keys lists every key that has been opened, sorted.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Manager) isCurrentLocked(gen uint64) bool {
	return m.current != nil && m.current.gen == gen
}

// cancelCurrentLocked invalidates the current slot before signalling the
// transfer, so nothing it produces afterwards is applied.
func (m *Manager) cancelCurrentLocked(reason string) {
	t := m.current
	if t == nil {
		return
	}
	m.current = nil
	t.cancel()

	if e, ok := m.entries[t.key]; ok && e.gen == t.gen && e.state == StateLoading {
		e.finish(StateCancelled, nil)
		m.notifyLocked(t.key, e)
	}
	m.logger.Debug("session cancelled", "key", t.key, "reason", reason, "generation", t.gen)
}

func (m *Manager) notifyLocked(key string, e *entry) {
	if m.onUpdate != nil {
		m.onUpdate(e.snapshot(key))
	}
}

// Session is a handle on one Open call.
type Session struct {
	m      *Manager
	key    string
	entry  *entry
	cached bool
}

// Key returns the session key.
func (s *Session) Key() string { return s.key }

// Cached reports whether Open was served from completed content without a transfer.
func (s *Session) Cached() bool { return s.cached }

// Done is closed when this session's transfer reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	if s.cached {
		return closedChan
	}
	return s.entry.done
}

// Snapshot returns the current content of this session.
func (s *Session) Snapshot() Snapshot {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.entry.snapshot(s.key)
}

// Wait blocks until the session is terminal and returns its final content.
// The error is the transfer's failure, if any, or ctx.Err().
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.Done():
		snap := s.Snapshot()
		return snap, snap.Err
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Cancel stops this session's transfer if it is still the active one.
func (s *Session) Cancel() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.isCurrentLocked(s.entry.gen) {
		s.m.cancelCurrentLocked("session cancel")
	}
}
