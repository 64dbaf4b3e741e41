package bookchat

import (
	"fmt"
	"strings"
)

// StreamRequest describes one streaming POST to the backend.
type StreamRequest struct {
	// Route is the backend path, e.g. "/api/chat_stream"
	Route string

	// Body is marshalled to JSON; nil sends "{}"
	Body any
}

// ChatRequest is the body of a chat stream.
type ChatRequest struct {
	Query string `json:"query"`
}

// Validate checks that the query is not blank.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return &ValidationError{
			Field:  "query",
			Value:  r.Query,
			Reason: "must not be empty",
			Err:    ErrInvalidRequest,
		}
	}
	return nil
}

// ContextRequest asks the backend to generate reading context for a book page.
type ContextRequest struct {
	BookID string `json:"id_book,omitempty"`
	Title  string `json:"title,omitempty"`
	Page   string `json:"page,omitempty"`
	Query  string `json:"query,omitempty"`
}

// Key identifies the book location this request is about. Two requests with the
// same key share one cached result.
func (r ContextRequest) Key() string {
	id := strings.TrimSpace(r.BookID)
	if id == "" {
		id = "title:" + strings.TrimSpace(r.Title)
	}
	return id + "#" + strings.TrimSpace(r.Page)
}

// Validate checks that the request identifies a book.
func (r ContextRequest) Validate() error {
	if strings.TrimSpace(r.BookID) == "" && strings.TrimSpace(r.Title) == "" {
		return &ValidationError{
			Field:  "id_book",
			Value:  r.BookID,
			Reason: "either id_book or title is required",
			Err:    ErrInvalidRequest,
		}
	}
	return nil
}

// messageKey is the session key of the assistant reply at transcript position index.
func messageKey(index int) string {
	return fmt.Sprintf("msg-%d", index)
}
