package bookchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	streamAccept = "text/event-stream, application/x-ndjson, text/plain"
	jsonAccept   = "application/json"

	// maxErrorBody caps how much of a failed response is kept for the error message.
	maxErrorBody = 64 * 1024
)

// Client talks to the library chat backend.
// It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	creds      CredentialProvider
	logger     *slog.Logger
	sessionID  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout, if any, also bounds streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCredentials sets the bearer token source.
func WithCredentials(p CredentialProvider) Option {
	return func(c *Client) { c.creds = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for cfg. Without WithCredentials the token is read
// from cfg.TokenEnv.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
		sessionID:  cfg.SessionID,
	}
	if cfg.TokenEnv != "" {
		c.creds = EnvToken(cfg.TokenEnv)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}

	for _, w := range cfg.Warnings() {
		level := slog.LevelWarn
		if w.Severity == SeverityInfo {
			level = slog.LevelInfo
		}
		c.logger.Log(context.Background(), level, "config warning",
			"code", w.Code,
			"field", w.Field,
			"message", w.Message)
	}
	return c, nil
}

// Config returns the client's configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// SessionID returns the id sent with card searches.
func (c *Client) SessionID() string {
	return c.sessionID
}

// ChatStreamRequest builds the streaming request for a chat message.
func (c *Client) ChatStreamRequest(r ChatRequest) *StreamRequest {
	return &StreamRequest{Route: c.cfg.Routes.ChatStream, Body: r}
}

// ContextStreamRequest builds the streaming request for a book context panel.
func (c *Client) ContextStreamRequest(r ContextRequest) *StreamRequest {
	return &StreamRequest{Route: c.cfg.Routes.GenerateContext, Body: r}
}

// Stream posts req and decodes the response body as it arrives.
func (c *Client) Stream(ctx context.Context, req *StreamRequest) (*EventStream, error) {
	if req == nil || req.Route == "" {
		return nil, &ValidationError{Field: "route", Value: "", Reason: "stream request needs a route", Err: ErrInvalidRequest}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	httpReq, err := c.buildRequest(reqCtx, http.MethodPost, req.Route, req.Body, streamAccept)
	if err != nil {
		cancel()
		return nil, err
	}

	c.logger.DebugContext(ctx, "stream request", "route", req.Route)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s request failed: %w", req.Route, err)
	}

	if err := c.checkResponse(ctx, req.Route, resp); err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	c.logger.DebugContext(ctx, "stream started",
		"route", req.Route,
		"framing", FramingFromContentType(contentType).String())

	return startEventStream(reqCtx, cancel, func(ctx context.Context, emit EmitFunc) error {
		defer resp.Body.Close()
		return DecodeStream(ctx, resp.Body, contentType, emitHandler(emit))
	}), nil
}

// StreamTo runs req to completion, delivering events to h on the calling goroutine.
func (c *Client) StreamTo(ctx context.Context, req *StreamRequest, h Handler) error {
	es, err := c.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer es.Close()

	for ev := range es.Events() {
		Dispatch(h, ev)
	}
	return es.Err()
}

// buildRequest creates an HTTP request with JSON body and bearer auth.
func (c *Client) buildRequest(ctx context.Context, method, route string, body any, accept string) (*http.Request, error) {
	var reader io.Reader
	if method != http.MethodGet {
		if body == nil {
			body = struct{}{}
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.cfg.endpoint(route), reader)
	if err != nil {
		return nil, err
	}

	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", accept)
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

// checkResponse turns a failed or bodiless response into a TransportError.
// A 401 also invalidates the credential so the next call goes out anonymously.
func (c *Client) checkResponse(ctx context.Context, route string, resp *http.Response) error {
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && resp.Body != nil && resp.Body != http.NoBody {
		return nil
	}

	var body string
	if resp.Body != nil {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		body = strings.TrimSpace(string(data))
	}

	te := newTransportError(route, resp, body)
	if ok {
		te.Err = ErrNoBody
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if inv, ok := c.creds.(Invalidator); ok {
			inv.Invalidate()
		}
	}

	c.logger.WarnContext(ctx, "backend request failed",
		"route", route,
		"status", resp.StatusCode,
		"body", body)
	return te
}

// doJSON performs a non-streaming call bounded by the configured request timeout.
func (c *Client) doJSON(ctx context.Context, method, route string, in, out any) error {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	httpReq, err := c.buildRequest(ctx, method, route, in, jsonAccept)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", route, err)
	}
	defer resp.Body.Close()

	if err := c.checkResponse(ctx, route, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w (%w)", route, err, ErrInvalidResponse)
	}
	return nil
}
