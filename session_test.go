package bookchat

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testReq = &StreamRequest{Route: "/api/generate_llm_context"}

func TestManager_CompletesAndCaches(t *testing.T) {
	fs := &fakeStreamer{}
	m := NewManager(fs)
	ctx := context.Background()

	sess, err := m.Open(ctx, "b-1#7", testReq)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if sess.Cached() {
		t.Error("first open should not be cached")
	}
	if snap := sess.Snapshot(); snap.State != StateLoading || !snap.Loading() {
		t.Errorf("state = %v, want loading", snap.State)
	}
	if key, ok := m.Active(); !ok || key != "b-1#7" {
		t.Errorf("Active() = %q, %v", key, ok)
	}

	tr := fs.transfer(0)
	tr.send(TextEvent("Chapter "))
	tr.send(MetaEvent("/files/b-1.pdf"))
	tr.send(TextEvent("seven"))
	tr.finish(nil)

	snap := waitDone(t, sess)
	if snap.State != StateCompleted || snap.Text != "Chapter seven" || snap.DownloadURL != "/files/b-1.pdf" {
		t.Fatalf("final snapshot = %+v", snap)
	}
	if _, ok := m.Active(); ok {
		t.Error("no transfer should be active after completion")
	}
	select {
	case <-tr.ctx.Done():
	default:
		t.Error("completed transfer context should be released")
	}

	again, err := m.Open(ctx, "b-1#7", testReq)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if !again.Cached() {
		t.Error("second open should be a cache hit")
	}
	if fs.calls() != 1 {
		t.Errorf("transport invoked %d times, want 1", fs.calls())
	}
	if got := again.Snapshot().Text; got != "Chapter seven" {
		t.Errorf("cached text = %q", got)
	}
	select {
	case <-again.Done():
	default:
		t.Error("cached session should be done")
	}
}

func TestManager_OpenSupersedesLoadingKey(t *testing.T) {
	fs := &fakeStreamer{}
	log := &updateLog{}
	m := NewManager(fs, WithUpdateFunc(log.record))
	ctx := context.Background()

	sessA, _ := m.Open(ctx, "A", testReq)
	trA := fs.transfer(0)
	trA.send(TextEvent("partial "))
	waitFor(t, "A's first delta", textIs(m, "A", "partial "))

	sessB, err := m.Open(ctx, "B", testReq)
	if err != nil {
		t.Fatalf("Open B failed: %v", err)
	}
	updatesForA := log.count("A")

	select {
	case <-trA.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("A's transfer was not cancelled")
	}

	// Anything A's transfer still produces must be discarded.
	trA.send(TextEvent("late"))
	time.Sleep(20 * time.Millisecond)

	if got := log.count("A"); got != updatesForA {
		t.Errorf("%d updates for A after B started", got-updatesForA)
	}
	snapA := waitDone(t, sessA)
	if snapA.State != StateCancelled {
		t.Errorf("A state = %v, want cancelled", snapA.State)
	}
	if snapA.Text != "partial " {
		t.Errorf("A text = %q, partial text should be kept", snapA.Text)
	}
	if snapA.Err != nil {
		t.Errorf("cancellation is not an error, got %v", snapA.Err)
	}

	if key, _ := m.Active(); key != "B" {
		t.Errorf("Active() = %q, want B", key)
	}
	fs.transfer(1).send(TextEvent("b"))
	fs.transfer(1).finish(nil)
	if snap := waitDone(t, sessB); snap.State != StateCompleted || snap.Text != "b" {
		t.Errorf("B = %+v", snap)
	}
}

func TestManager_ReopenAfterCancelStartsFresh(t *testing.T) {
	fs := &fakeStreamer{}
	m := NewManager(fs)
	ctx := context.Background()

	m.Open(ctx, "A", testReq)
	fs.transfer(0).send(TextEvent("old"))
	waitFor(t, "old text", textIs(m, "A", "old"))

	m.Open(ctx, "B", testReq)
	if snap, _ := m.Snapshot("A"); snap.State != StateCancelled || snap.Text != "old" {
		t.Fatalf("A after supersede = %+v", snap)
	}

	sess, _ := m.Open(ctx, "A", testReq)
	if sess.Cached() || fs.calls() != 3 {
		t.Fatalf("re-opening a cancelled key should issue a new transfer (calls=%d)", fs.calls())
	}
	if snap := sess.Snapshot(); snap.Text != "" || snap.State != StateLoading {
		t.Errorf("fresh session = %+v", snap)
	}
	if snap, _ := m.Snapshot("B"); snap.State != StateCancelled {
		t.Errorf("B state = %v, want cancelled", snap.State)
	}

	tr := fs.transfer(2)
	tr.send(TextEvent("new"))
	tr.finish(nil)
	if snap := waitDone(t, sess); snap.Text != "new" || snap.State != StateCompleted {
		t.Errorf("A = %+v", snap)
	}
}

func TestManager_TransportFailure(t *testing.T) {
	fs := &fakeStreamer{startErr: &TransportError{Route: "/x", StatusCode: 500, Err: ErrBackendUnavailable}}
	log := &updateLog{}
	m := NewManager(fs, WithUpdateFunc(log.record))

	sess, err := m.Open(context.Background(), "A", testReq)
	if StatusCode(err) != 500 {
		t.Fatalf("Open error = %v, want status 500", err)
	}

	snap := sess.Snapshot()
	if snap.State != StateErrored || snap.Text != "" || !errors.Is(snap.Err, ErrBackendUnavailable) {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, ok := m.Active(); ok {
		t.Error("failed transfer should not stay active")
	}

	// A failed key is retried on the next open.
	fs.startErr = nil
	retry, err := m.Open(context.Background(), "A", testReq)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retry.Cached() || fs.calls() != 2 {
		t.Errorf("retry should issue a new transfer (calls=%d)", fs.calls())
	}
	m.Close()
}

func TestManager_MidStreamFailure(t *testing.T) {
	fs := &fakeStreamer{}
	m := NewManager(fs)

	sess, _ := m.Open(context.Background(), "A", testReq)
	tr := fs.transfer(0)
	tr.send(TextEvent("half"))
	boom := errors.New("connection reset")
	tr.finish(boom)

	snap := waitDone(t, sess)
	if snap.State != StateErrored || !errors.Is(snap.Err, boom) || snap.Text != "half" {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, err := sess.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestManager_ParentContextCancelled(t *testing.T) {
	fs := &fakeStreamer{}
	m := NewManager(fs)

	ctx, cancel := context.WithCancel(context.Background())
	sess, _ := m.Open(ctx, "A", testReq)
	cancel()

	if snap := waitDone(t, sess); snap.State != StateCancelled {
		t.Errorf("state = %v, want cancelled", snap.State)
	}
}

func TestManager_CancelledWhileConnecting(t *testing.T) {
	fs := &fakeStreamer{startErr: context.Canceled}
	m := NewManager(fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess, err := m.Open(ctx, "A", testReq)
	if err != nil {
		t.Fatalf("Open error = %v, want nil for a cancelled caller", err)
	}
	snap := waitDone(t, sess)
	if snap.State != StateCancelled || snap.Err != nil {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, ok := m.Active(); ok {
		t.Error("cancelled transfer should not stay active")
	}

	fs.startErr = nil
	again, err := m.Open(context.Background(), "A", testReq)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if again.Cached() || fs.calls() != 2 {
		t.Errorf("reopen should issue a new transfer (calls=%d)", fs.calls())
	}
	m.Close()
}

func TestManager_CloseAndSessionCancel(t *testing.T) {
	fs := &fakeStreamer{}
	m := NewManager(fs)
	ctx := context.Background()

	sessA, _ := m.Open(ctx, "A", testReq)
	sessB, _ := m.Open(ctx, "B", testReq)

	// A is no longer active, so cancelling it must leave B alone.
	sessA.Cancel()
	if key, ok := m.Active(); !ok || key != "B" {
		t.Fatalf("Active() = %q, %v", key, ok)
	}

	m.Close()
	if snap := waitDone(t, sessB); snap.State != StateCancelled {
		t.Errorf("B state = %v", snap.State)
	}
	if _, ok := m.Active(); ok {
		t.Error("Close should clear the active transfer")
	}
	m.Close()
}

func TestManager_OpenValidation(t *testing.T) {
	m := NewManager(&fakeStreamer{})

	if _, err := m.Open(context.Background(), "", testReq); !IsInvalidRequest(err) {
		t.Errorf("empty key error = %v", err)
	}
	if _, err := m.Open(context.Background(), "A", nil); !IsInvalidRequest(err) {
		t.Errorf("nil request error = %v", err)
	}
}

func TestManager_SnapshotAndKeys(t *testing.T) {
	fs := &fakeStreamer{}
	m := NewManager(fs)

	if snap, ok := m.Snapshot("missing"); ok || snap.State != StateIdle {
		t.Errorf("missing key = %+v, %v", snap, ok)
	}

	m.Open(context.Background(), "zeta", testReq)
	m.Open(context.Background(), "alpha", testReq)
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "zeta" {
		t.Errorf("Keys() = %v", keys)
	}
	m.Close()
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateIdle, "idle", false},
		{StateLoading, "loading", false},
		{StateCompleted, "completed", true},
		{StateCancelled, "cancelled", true},
		{StateErrored, "errored", true},
		{State(99), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if tt.state.String() != tt.want || tt.state.Terminal() != tt.terminal {
				t.Errorf("%d: String()=%q Terminal()=%v", tt.state, tt.state.String(), tt.state.Terminal())
			}
		})
	}
}
