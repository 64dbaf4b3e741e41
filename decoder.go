package bookchat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const readBufferSize = 32 * 1024

var (
	sseEventBoundary = []byte("\n\n")
	crlf             = []byte("\r\n")
	lf               = []byte("\n")
)

// Decoder turns raw response bytes into StreamEvents without knowing in advance
// whether the server speaks plain text, NDJSON or SSE.
//
// Bytes are buffered until a complete record is available; the undecoded tail is
// carried over to the next Write. Records are only split on ASCII delimiters, so a
// multi-byte character is never cut in half. Malformed records never fail the
// stream: they are delivered as literal text.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	handler Handler
	framing Framing
	buf     []byte
}

// NewDecoder creates a decoder for a response with the given declared content type.
func NewDecoder(contentType string, h Handler) *Decoder {
	return &Decoder{
		handler: h,
		framing: FramingFromContentType(contentType),
	}
}

// Framing returns the decoding path selected from the content type.
func (d *Decoder) Framing() Framing {
	return d.framing
}

// Write buffers p and emits every record it completes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	if d.framing == FramingSSE {
		d.drainEvents()
	} else {
		d.drainLines()
	}
	return len(p), nil
}

// Flush decodes whatever is left in the carry-over buffer at end of stream.
// SSE streams are expected to end on an event boundary, so their tail is discarded.
func (d *Decoder) Flush() {
	rest := d.buf
	d.buf = nil
	if len(rest) == 0 || d.framing == FramingSSE {
		return
	}

	tail := string(rest)
	if ev, class := ParseRecord(strings.TrimSpace(tail)); class == RecordEnvelope {
		Dispatch(d.handler, ev)
		return
	}
	d.handler.OnText(tail)
}

// Pending reports how many undecoded bytes are being carried over.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

func (d *Decoder) drainLines() {
	consumed := 0
	for {
		i := bytes.IndexByte(d.buf[consumed:], '\n')
		if i < 0 {
			break
		}
		d.decodeLine(string(d.buf[consumed : consumed+i]))
		consumed += i + 1
	}
	d.compact(consumed)
}

func (d *Decoder) decodeLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if ev, class := ParseRecord(trimmed); class == RecordEnvelope {
		Dispatch(d.handler, ev)
		return
	}
	d.handler.OnText(trimmed + "\n")
}

func (d *Decoder) drainEvents() {
	if bytes.Contains(d.buf, crlf) {
		d.buf = bytes.ReplaceAll(d.buf, crlf, lf)
	}

	consumed := 0
	for {
		i := bytes.Index(d.buf[consumed:], sseEventBoundary)
		if i < 0 {
			break
		}
		d.decodeEvent(string(d.buf[consumed : consumed+i]))
		consumed += i + len(sseEventBoundary)
	}
	d.compact(consumed)
}

func (d *Decoder) decodeEvent(event string) {
	for _, line := range strings.Split(event, "\n") {
		payload, ok := dataPayload(line)
		if !ok {
			continue
		}
		if ev, class := ParseRecord(payload); class == RecordEnvelope {
			Dispatch(d.handler, ev)
			continue
		}
		if payload != "" {
			d.handler.OnText(payload)
		}
	}
}

// dataPayload extracts the value of a "data:" field line (prefix is case-insensitive,
// leading whitespace after the colon is dropped).
func dataPayload(line string) (string, bool) {
	const prefix = "data:"
	if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimLeftFunc(line[len(prefix):], unicode.IsSpace), true
}

func (d *Decoder) compact(consumed int) {
	if consumed == 0 {
		return
	}
	n := copy(d.buf, d.buf[consumed:])
	d.buf = d.buf[:n]
}

// DecodeStream reads r to the end, feeding it through a Decoder bound to h.
//
// Bytes pass through an incremental UTF-8 decoder first: a leading BOM is dropped,
// characters split across reads are reassembled and invalid sequences become U+FFFD.
// It returns nil when r is exhausted and ctx.Err() once ctx is cancelled; no
// handler call happens after cancellation is observed.
func DecodeStream(ctx context.Context, r io.Reader, contentType string, h Handler) error {
	dec := NewDecoder(contentType, h)
	text := transform.NewReader(r, xunicode.UTF8BOM.NewDecoder())
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := text.Read(buf)
		if n > 0 {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			dec.Write(buf[:n])
		}

		if errors.Is(err, io.EOF) {
			dec.Flush()
			return nil
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return err
		}
	}
}
