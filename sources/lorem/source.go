package lorem

import (
	"context"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/djsadd/bookchat-go/sources"
)

// Speed presets, in delay between words.
const (
	SpeedSlow    = 500 * time.Millisecond // 2 words/second
	SpeedMedium  = 100 * time.Millisecond // 10 words/second
	SpeedFast    = 33 * time.Millisecond  // 30 words/second
	SpeedInstant = 0
)

// Source is a mock text generator producing lorem ipsum.
// Used for testing and development without a real model behind the backend.
type Source struct {
	mu        sync.Mutex // generator is not safe for concurrent use
	generator *loremgen.Lorem

	delay     time.Duration
	wordLimit int
}

// Option configures a Source.
type Option func(*Source)

// WithDelay sets the pause between streamed words.
func WithDelay(d time.Duration) Option {
	return func(s *Source) { s.delay = d }
}

// WithWordLimit sets how many words one answer contains. Negative limits count as 0.
func WithWordLimit(n int) Option {
	return func(s *Source) { s.wordLimit = max(n, 0) }
}

// New creates a lorem source streaming 60 words at medium speed.
func New(opts ...Option) *Source {
	s := &Source{
		generator: loremgen.New(),
		delay:     SpeedMedium,
		wordLimit: 60,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpeedFromName maps "slow", "medium", "fast" and "instant" to a delay.
// Unknown names get the medium speed.
func SpeedFromName(name string) time.Duration {
	switch {
	case strings.Contains(name, "slow"):
		return SpeedSlow
	case strings.Contains(name, "fast"):
		return SpeedFast
	case strings.Contains(name, "instant"):
		return SpeedInstant
	default:
		return SpeedMedium
	}
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return "lorem"
}

// Stream emits wordLimit lorem words, one chunk per word, separated by spaces.
// The prompt is ignored.
func (s *Source) Stream(ctx context.Context, prompt string) (<-chan sources.Chunk, error) {
	words := strings.Fields(s.generateWords(s.wordLimit))
	out := make(chan sources.Chunk, 10)

	go func() {
		defer close(out)

		for i, word := range words {
			if i > 0 {
				word = " " + word
			}
			if i > 0 && s.delay > 0 {
				select {
				case <-time.After(s.delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- sources.Chunk{Text: word}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// generateWords builds text of exactly targetWords words from lorem sentences.
func (s *Source) generateWords(targetWords int) string {
	if targetWords <= 0 {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var words []string
	for len(words) < targetWords {
		words = append(words, strings.Fields(s.generator.Sentence(5, 15))...)
	}
	return strings.Join(words[:targetWords], " ")
}
