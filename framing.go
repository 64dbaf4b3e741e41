package bookchat

import "strings"

// Framing identifies how a backend delimits records in a response body.
// Using a typed constant prevents typos in configuration and flags.
type Framing string

// Known framings
const (
	// FramingPlain is raw text, optionally split into lines
	FramingPlain Framing = "plain"

	// FramingNDJSON is one JSON envelope per line
	FramingNDJSON Framing = "ndjson"

	// FramingSSE is server-sent events with JSON or text data payloads
	FramingSSE Framing = "sse"
)

const eventStreamMarker = "text/event-stream"

// String returns the string representation of the framing
func (f Framing) String() string {
	return string(f)
}

// IsValid returns true if the framing is a known one
func (f Framing) IsValid() bool {
	switch f {
	case FramingPlain, FramingNDJSON, FramingSSE:
		return true
	default:
		return false
	}
}

// ContentType returns the media type a server declares for this framing.
func (f Framing) ContentType() string {
	switch f {
	case FramingSSE:
		return eventStreamMarker + "; charset=utf-8"
	case FramingNDJSON:
		return "application/x-ndjson; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// FramingFromContentType infers the decoding path from a declared content type.
// Only the event-stream marker is trusted; everything else (including an absent
// header) is decoded line by line, which covers both NDJSON and plain text.
func FramingFromContentType(contentType string) Framing {
	if strings.Contains(strings.ToLower(contentType), eventStreamMarker) {
		return FramingSSE
	}
	return FramingNDJSON
}
