package bookchat

import "strings"

// EventKind discriminates the variants of StreamEvent.
type EventKind int

const (
	// EventText carries an incremental text fragment to append to the response.
	EventText EventKind = iota + 1

	// EventMeta carries a download URL announced by the backend.
	EventMeta
)

// String returns the wire discriminant used by the backend envelopes.
func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// StreamEvent represents a single decoded event in a streaming response.
// Exactly one payload field is meaningful, selected by Kind.
type StreamEvent struct {
	Kind EventKind

	// Text is the delta to append (EventText only)
	Text string

	// DownloadURL is the resolved file link (EventMeta only)
	DownloadURL string
}

// TextEvent builds a text-delta event.
func TextEvent(delta string) StreamEvent {
	return StreamEvent{Kind: EventText, Text: delta}
}

// MetaEvent builds a download-url metadata event.
func MetaEvent(url string) StreamEvent {
	return StreamEvent{Kind: EventMeta, DownloadURL: url}
}

// Handler receives decoded events in stream order.
type Handler interface {
	OnText(delta string)
	OnDownloadURL(url string)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Text        func(delta string)
	DownloadURL func(url string)
}

func (h HandlerFuncs) OnText(delta string) {
	if h.Text != nil {
		h.Text(delta)
	}
}

func (h HandlerFuncs) OnDownloadURL(url string) {
	if h.DownloadURL != nil {
		h.DownloadURL(url)
	}
}

// Dispatch routes ev to the matching Handler method.
func Dispatch(h Handler, ev StreamEvent) {
	switch ev.Kind {
	case EventText:
		h.OnText(ev.Text)
	case EventMeta:
		h.OnDownloadURL(ev.DownloadURL)
	}
}

// Collector accumulates a whole stream in memory.
// Not safe for concurrent use.
type Collector struct {
	text strings.Builder

	// Deltas holds every text delta in arrival order
	Deltas []string

	// URLs holds every download URL in arrival order
	URLs []string
}

func (c *Collector) OnText(delta string) {
	c.text.WriteString(delta)
	c.Deltas = append(c.Deltas, delta)
}

func (c *Collector) OnDownloadURL(url string) {
	c.URLs = append(c.URLs, url)
}

// Text returns the concatenation of all deltas received so far.
func (c *Collector) Text() string {
	return c.text.String()
}

// DownloadURL returns the last announced URL, or "" if none arrived.
func (c *Collector) DownloadURL() string {
	if len(c.URLs) == 0 {
		return ""
	}
	return c.URLs[len(c.URLs)-1]
}
