package bookchat

import (
	"context"
	"strings"
	"sync"
)

// Role is the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ReplyErrorMarker is appended to an assistant reply whose stream failed.
const ReplyErrorMarker = "[error receiving response]"

// Message is one rendered transcript entry.
type Message struct {
	Role Role

	// Key is the session key of an assistant reply ("" for user messages)
	Key string

	// Text is the user's input or the assistant text streamed so far
	Text        string
	DownloadURL string
	State       State
	Err         error
}

type turn struct {
	role Role
	text string
	key  string
}

// Conversation is a chat transcript whose assistant replies are streamed into
// place, plus a separately managed book-context panel.
//
// Replies and context panels have independent managers: sending a message
// supersedes the previous reply stream but leaves an open context panel alone.
type Conversation struct {
	routes  Routes
	replies *Manager
	panel   *Manager

	mu    sync.Mutex
	turns []turn
}

// NewConversation creates a transcript that streams through s using routes.
// opts apply to both the reply and the context-panel managers.
func NewConversation(s Streamer, routes Routes, opts ...ManagerOption) *Conversation {
	return &Conversation{
		routes:  routes,
		replies: NewManager(s, opts...),
		panel:   NewManager(s, opts...),
	}
}

// NewConversation creates a transcript bound to this client.
func (c *Client) NewConversation(opts ...ManagerOption) *Conversation {
	opts = append([]ManagerOption{WithManagerLogger(c.logger)}, opts...)
	return NewConversation(c, c.cfg.Routes, opts...)
}

// Send appends query and an assistant placeholder, then streams the reply.
// Any reply still streaming is cancelled first.
func (cv *Conversation) Send(ctx context.Context, query string) (*Session, error) {
	req := ChatRequest{Query: strings.TrimSpace(query)}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cv.mu.Lock()
	cv.turns = append(cv.turns, turn{role: RoleUser, text: req.Query})
	key := messageKey(len(cv.turns))
	cv.turns = append(cv.turns, turn{role: RoleAssistant, key: key})
	cv.mu.Unlock()

	return cv.replies.Open(ctx, key, &StreamRequest{Route: cv.routes.ChatStream, Body: req})
}

// Messages renders the transcript from the latest stream state.
func (cv *Conversation) Messages() []Message {
	cv.mu.Lock()
	turns := make([]turn, len(cv.turns))
	copy(turns, cv.turns)
	cv.mu.Unlock()

	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		if t.role == RoleUser {
			out = append(out, Message{Role: RoleUser, Text: t.text, State: StateCompleted})
			continue
		}

		snap, _ := cv.replies.Snapshot(t.key)
		msg := Message{
			Role:        RoleAssistant,
			Key:         t.key,
			Text:        snap.Text,
			DownloadURL: snap.DownloadURL,
			State:       snap.State,
			Err:         snap.Err,
		}
		if snap.State == StateErrored {
			msg.Text += "\n" + ReplyErrorMarker
		}
		out = append(out, msg)
	}
	return out
}

// OpenContext shows the generated context for a book location, reusing
// completed content for the same location.
func (cv *Conversation) OpenContext(ctx context.Context, req ContextRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return cv.panel.Open(ctx, req.Key(), &StreamRequest{Route: cv.routes.GenerateContext, Body: req})
}

// Context returns the context panel state for a book location.
func (cv *Conversation) Context(req ContextRequest) (Snapshot, bool) {
	return cv.panel.Snapshot(req.Key())
}

// CloseContext cancels a context panel that is still streaming.
func (cv *Conversation) CloseContext() {
	cv.panel.Close()
}

// Close cancels every active stream. Transcript and cached context are kept.
func (cv *Conversation) Close() {
	cv.replies.Close()
	cv.panel.Close()
}
