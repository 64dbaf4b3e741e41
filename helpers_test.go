package bookchat

// Test helpers shared across test files

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recorder logs every handler call in order.
type recorder struct {
	calls []string
}

func (r *recorder) OnText(delta string)      { r.calls = append(r.calls, "text:"+delta) }
func (r *recorder) OnDownloadURL(url string) { r.calls = append(r.calls, "meta:"+url) }

// fakeTransfer is one controllable in-flight stream.
type fakeTransfer struct {
	ctx    context.Context
	req    *StreamRequest
	events chan StreamEvent
	end    chan error
}

// send pushes ev into the transfer, giving up if the producer has already stopped.
func (tr *fakeTransfer) send(ev StreamEvent) bool {
	select {
	case tr.events <- ev:
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func (tr *fakeTransfer) finish(err error) {
	tr.end <- err
}

// fakeStreamer hands out fakeTransfers and counts transport invocations.
type fakeStreamer struct {
	mu        sync.Mutex
	transfers []*fakeTransfer
	startErr  error
}

func (f *fakeStreamer) Stream(ctx context.Context, req *StreamRequest) (*EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tr := &fakeTransfer{ctx: ctx, req: req, events: make(chan StreamEvent), end: make(chan error, 1)}
	f.transfers = append(f.transfers, tr)
	if f.startErr != nil {
		return nil, f.startErr
	}

	return NewEventStream(ctx, func(ctx context.Context, emit EmitFunc) error {
		for {
			select {
			case ev := <-tr.events:
				if !emit(ev) {
					return ctx.Err()
				}
			case err := <-tr.end:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}), nil
}

func (f *fakeStreamer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

func (f *fakeStreamer) transfer(i int) *fakeTransfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transfers[i]
}

// updateLog records every update callback.
type updateLog struct {
	mu      sync.Mutex
	updates []Snapshot
}

func (l *updateLog) record(s Snapshot) {
	l.mu.Lock()
	l.updates = append(l.updates, s)
	l.mu.Unlock()
}

func (l *updateLog) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, u := range l.updates {
		if u.Key == key {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitDone(t *testing.T, s *Session) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("session %s did not finish", s.Key())
	}
	return snap
}

func textIs(m *Manager, key, want string) func() bool {
	return func() bool {
		snap, _ := m.Snapshot(key)
		return snap.Text == want
	}
}
