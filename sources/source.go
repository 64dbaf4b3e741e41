// Package sources defines where the development backend gets the text it streams.
package sources

import "context"

// Chunk is one piece of generated text, or the error that ended generation.
type Chunk struct {
	Text string
	Err  error
}

// Source generates text for a prompt incrementally.
type Source interface {
	// Name returns the source identifier (e.g., "lorem", "anthropic")
	Name() string

	// Stream starts generating and returns a channel that is closed when
	// generation ends. A failure after start is delivered as a final Chunk with Err.
	// Generation stops when ctx is cancelled.
	Stream(ctx context.Context, prompt string) (<-chan Chunk, error)
}

// Collect drains a source stream into one string.
func Collect(ch <-chan Chunk) (string, error) {
	var out []byte
	for c := range ch {
		if c.Err != nil {
			return string(out), c.Err
		}
		out = append(out, c.Text...)
	}
	return string(out), nil
}
