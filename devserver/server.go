// Package devserver is an in-process stand-in for the library chat backend.
//
// It streams text from a sources.Source in any of the supported framings and
// serves card searches from a small embedded catalogue. It backs the examples,
// the CLI serve command and the integration tests.
package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	bookchat "github.com/djsadd/bookchat-go"
	"github.com/djsadd/bookchat-go/sources"
)

// Server is an http.Handler implementing the backend routes.
type Server struct {
	src         sources.Source
	framing     bookchat.Framing
	routes      bookchat.Routes
	downloadURL string
	token       string
	disciplines []string
	logger      *slog.Logger

	mux *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithFraming selects the response framing of the streaming routes.
func WithFraming(f bookchat.Framing) Option {
	return func(s *Server) { s.framing = f }
}

// WithRoutes overrides the route paths.
func WithRoutes(r bookchat.Routes) Option {
	return func(s *Server) { s.routes = r }
}

// WithDownloadURL makes every stream end with a meta record carrying url.
// Plain framing has no envelopes, so the meta record goes on its own line there.
func WithDownloadURL(url string) Option {
	return func(s *Server) { s.downloadURL = url }
}

// WithRequiredToken rejects requests without "Authorization: Bearer <token>" with 401.
func WithRequiredToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithDisciplines sets the educational disciplines returned to the user.
func WithDisciplines(d []string) Option {
	return func(s *Server) { s.disciplines = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a backend streaming text from src.
func New(src sources.Source, opts ...Option) *Server {
	s := &Server{
		src:         src,
		framing:     bookchat.FramingNDJSON,
		routes:      bookchat.DefaultConfig().Routes,
		disciplines: []string{"Algorithms", "Linear Algebra", "Economics"},
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST "+s.routes.ChatStream, s.handleChatStream)
	s.mux.HandleFunc("POST "+s.routes.GenerateContext, s.handleContextStream)
	s.mux.HandleFunc("POST "+s.routes.ChatCard, s.handleChatCard)
	s.mux.HandleFunc("POST "+s.routes.Recommendations, s.handleRecommendations)
	s.mux.HandleFunc("GET "+s.routes.Disciplines, s.handleDisciplines)
	return s
}

// Framing returns the framing of the streaming routes.
func (s *Server) Framing() bookchat.Framing {
	return s.framing
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)

	if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
		s.logger.Warn("rejected unauthenticated request", "path", r.URL.Path)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req bookchat.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.stream(w, r, req.Query)
}

func (s *Server) handleContextStream(w http.ResponseWriter, r *http.Request) {
	var req bookchat.ContextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.stream(w, r, contextPrompt(req))
}

// contextPrompt asks the source to explain a book location.
func contextPrompt(req bookchat.ContextRequest) string {
	var b strings.Builder
	b.WriteString("Give reading context for ")
	if req.Title != "" {
		fmt.Fprintf(&b, "%q", req.Title)
	} else {
		fmt.Fprintf(&b, "book %s", req.BookID)
	}
	if req.Page != "" {
		fmt.Fprintf(&b, ", page %s", req.Page)
	}
	if req.Query != "" {
		fmt.Fprintf(&b, ", for the question: %s", req.Query)
	}
	return b.String()
}

// stream writes the source's chunks one record at a time, flushing after each.
// A source that fails to start is reported as 502 before any body is written.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, prompt string) {
	ctx := r.Context()

	ch, err := s.src.Stream(ctx, prompt)
	if err != nil {
		s.logger.Error("source failed to start", "source", s.src.Name(), "error", err)
		http.Error(w, "generation unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", s.framing.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rw := &recordWriter{w: w, rc: http.NewResponseController(w), framing: s.framing}
	chunks := 0
	for c := range ch {
		if c.Err != nil {
			s.logger.Warn("source failed mid-stream", "source", s.src.Name(), "error", c.Err)
			return
		}
		if err := rw.text(c.Text); err != nil {
			s.logger.Debug("client went away", "error", err)
			return
		}
		chunks++
	}

	if s.downloadURL != "" {
		if err := rw.meta(s.downloadURL); err != nil {
			s.logger.Debug("client went away", "error", err)
			return
		}
	}
	s.logger.Debug("stream finished", "framing", s.framing.String(), "chunks", chunks)
}

// recordWriter frames stream records for one response.
type recordWriter struct {
	w       io.Writer
	rc      *http.ResponseController
	framing bookchat.Framing
	started bool
}

func (rw *recordWriter) text(delta string) error {
	if rw.framing == bookchat.FramingPlain {
		rw.started = true
		return rw.write([]byte(delta))
	}
	env, err := bookchat.EncodeText(delta)
	if err != nil {
		return err
	}
	return rw.record(env)
}

func (rw *recordWriter) meta(url string) error {
	env, err := bookchat.EncodeMeta(url)
	if err != nil {
		return err
	}
	if rw.framing == bookchat.FramingPlain {
		// End the text line first so the envelope is a line of its own.
		if rw.started {
			env = append([]byte("\n"), env...)
		}
		return rw.write(env)
	}
	return rw.record(env)
}

func (rw *recordWriter) record(env []byte) error {
	var frame []byte
	switch rw.framing {
	case bookchat.FramingSSE:
		frame = append(append([]byte("data: "), env...), "\n\n"...)
	default:
		frame = append(env, '\n')
	}
	return rw.write(frame)
}

func (rw *recordWriter) write(p []byte) error {
	if _, err := rw.w.Write(p); err != nil {
		return err
	}
	// httptest recorders and some middleware cannot flush; the data is still written.
	if err := rw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
