package bookchat

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Envelope discriminants and field names used by the backend.
const (
	envelopeTypeField  = "type"
	envelopeDeltaField = "delta"
	envelopeURLField   = "download_url"
)

// RecordClass reports how a single record payload was understood.
type RecordClass int

const (
	// RecordEnvelope is a recognised text/meta envelope or a bare JSON string.
	RecordEnvelope RecordClass = iota

	// RecordUnrecognised is valid JSON without a recognised discriminant.
	RecordUnrecognised

	// RecordPlain is not JSON at all.
	RecordPlain
)

// ParseRecord classifies one record payload (an NDJSON line or an SSE data payload).
// The returned event is only meaningful for RecordEnvelope.
func ParseRecord(payload string) (StreamEvent, RecordClass) {
	if !gjson.Valid(payload) {
		return StreamEvent{}, RecordPlain
	}

	res := gjson.Parse(payload)
	switch {
	case res.Type == gjson.String:
		return TextEvent(res.Str), RecordEnvelope
	case res.IsObject():
		return parseEnvelope(res)
	default:
		return StreamEvent{}, RecordUnrecognised
	}
}

func parseEnvelope(obj gjson.Result) (StreamEvent, RecordClass) {
	kind := obj.Get(envelopeTypeField)
	if kind.Type != gjson.String {
		return StreamEvent{}, RecordUnrecognised
	}

	switch kind.Str {
	case EventText.String():
		delta := obj.Get(envelopeDeltaField)
		if delta.Type == gjson.String {
			return TextEvent(delta.Str), RecordEnvelope
		}
	case EventMeta.String():
		url := obj.Get(envelopeURLField)
		if url.Type == gjson.String {
			return MetaEvent(url.Str), RecordEnvelope
		}
	}
	return StreamEvent{}, RecordUnrecognised
}

// EncodeText renders a text-delta envelope without a trailing newline.
func EncodeText(delta string) ([]byte, error) {
	out, err := sjson.SetBytes(nil, envelopeTypeField, EventText.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, envelopeDeltaField, delta)
}

// EncodeMeta renders a download-url envelope without a trailing newline.
func EncodeMeta(url string) ([]byte, error) {
	out, err := sjson.SetBytes(nil, envelopeTypeField, EventMeta.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, envelopeURLField, url)
}

// EncodeEvent renders ev as its envelope.
func EncodeEvent(ev StreamEvent) ([]byte, error) {
	switch ev.Kind {
	case EventMeta:
		return EncodeMeta(ev.DownloadURL)
	default:
		return EncodeText(ev.Text)
	}
}
