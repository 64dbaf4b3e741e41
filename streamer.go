package bookchat

import (
	"context"
	"sync"
)

// Streamer starts streaming transfers. *Client implements it; tests substitute fakes.
//
// Types used by this interface:
//   - StreamRequest: defined in request.go
//   - EventStream: defined below
type Streamer interface {
	// Stream issues the request and returns once the response headers are in.
	// A transport failure (non-success status, no body) is returned here, before
	// any event is produced. Otherwise events arrive on EventStream.Events().
	//
	// Usage:
	//   es, err := streamer.Stream(ctx, req)
	//   if err != nil { return err }
	//   defer es.Close()
	//   for ev := range es.Events() {
	//     bookchat.Dispatch(handler, ev)
	//   }
	//   if err := es.Err(); err != nil { handle read failure or cancellation }
	Stream(ctx context.Context, req *StreamRequest) (*EventStream, error)
}

// EmitFunc delivers one event to the consumer. It returns false once the stream
// has been cancelled; producers should stop and return ctx.Err().
type EmitFunc func(StreamEvent) bool

// ProduceFunc feeds a stream from a goroutine until its source is exhausted.
type ProduceFunc func(ctx context.Context, emit EmitFunc) error

// EventStream is an in-flight transfer. Events are buffered so the producer can
// run slightly ahead of a slow consumer.
type EventStream struct {
	events chan StreamEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

const eventBufferSize = 16

// NewEventStream runs produce in a goroutine bound to a child of ctx and exposes
// what it emits. The events channel is closed when produce returns.
func NewEventStream(ctx context.Context, produce ProduceFunc) *EventStream {
	ctx, cancel := context.WithCancel(ctx)
	return startEventStream(ctx, cancel, produce)
}

func startEventStream(ctx context.Context, cancel context.CancelFunc, produce ProduceFunc) *EventStream {
	es := &EventStream{
		events: make(chan StreamEvent, eventBufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	emit := func(ev StreamEvent) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case es.events <- ev:
			return true
		}
	}

	go func() {
		defer close(es.done)
		defer close(es.events)
		defer cancel()

		err := produce(ctx, emit)
		if err == nil {
			err = ctx.Err()
		}
		es.mu.Lock()
		es.err = err
		es.mu.Unlock()
	}()

	return es
}

// Events returns the channel of decoded events.
func (es *EventStream) Events() <-chan StreamEvent {
	return es.events
}

// Done is closed once the producer has finished.
func (es *EventStream) Done() <-chan struct{} {
	return es.done
}

// Err returns the terminal error after the events channel has been drained:
// nil for a clean end, ctx.Err() after cancellation, or the read failure.
func (es *EventStream) Err() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.err
}

// Close cancels the transfer and waits for the producer to stop.
func (es *EventStream) Close() error {
	es.cancel()
	<-es.done
	return nil
}

// emitHandler adapts an EmitFunc to the decoder's Handler.
type emitHandler EmitFunc

func (h emitHandler) OnText(delta string)      { h(TextEvent(delta)) }
func (h emitHandler) OnDownloadURL(url string) { h(MetaEvent(url)) }
