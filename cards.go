package bookchat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// CardOrigin tells which backend search produced a card.
type CardOrigin int

const (
	// OriginLegacy is a card from the older flat "cards" list
	OriginLegacy CardOrigin = iota

	// OriginBookSearch is a catalogue (bibliographic) match
	OriginBookSearch

	// OriginVectorSearch is a full-text semantic match inside a digitised book
	OriginVectorSearch
)

func (o CardOrigin) String() string {
	switch o {
	case OriginBookSearch:
		return "book_search"
	case OriginVectorSearch:
		return "vector_search"
	default:
		return "legacy"
	}
}

// Card is one book suggestion.
type Card struct {
	Origin CardOrigin `json:"-"`

	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	PubInfo     string `json:"pub_info,omitempty"`
	Year        string `json:"year,omitempty"`
	Subjects    string `json:"subjects,omitempty"`
	Lang        string `json:"lang,omitempty"`
	BookID      string `json:"id_book,omitempty"`
	TextSnippet string `json:"text_snippet,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Cover       string `json:"cover,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Page        string `json:"page,omitempty"`

	// Note is the free-form "source" text some backends attach to a card
	Note string `json:"source,omitempty"`
}

// UnmarshalJSON accepts year, page and id_book as either strings or numbers;
// backends differ in which they send.
func (c *Card) UnmarshalJSON(data []byte) error {
	type plain Card
	var aux struct {
		plain
		Year   looseString `json:"year"`
		BookID looseString `json:"id_book"`
		Page   looseString `json:"page"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Card(aux.plain)
	c.Year = string(aux.Year)
	c.BookID = string(aux.BookID)
	c.Page = string(aux.Page)
	return nil
}

// looseString decodes a JSON scalar into its text form. Numbers keep their
// literal spelling, so page 12 becomes "12".
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	switch r.Type {
	case gjson.String:
		*s = looseString(r.Str)
	case gjson.Number:
		*s = looseString(r.Raw)
	case gjson.True, gjson.False:
		*s = looseString(r.String())
	case gjson.Null:
		*s = ""
	default:
		return fmt.Errorf("expected a string or number, got %s", r.Raw)
	}
	return nil
}

// ContextRequest builds the context-panel request for this card.
func (c Card) ContextRequest(query string) ContextRequest {
	return ContextRequest{
		BookID: c.BookID,
		Title:  c.Title,
		Page:   c.Page,
		Query:  query,
	}
}

// CardResponse is a reply text plus its cards, in backend order:
// catalogue matches first, then full-text matches, then legacy cards.
type CardResponse struct {
	Reply string
	Cards []Card
}

// ByOrigin returns the cards produced by one search.
func (r *CardResponse) ByOrigin(o CardOrigin) []Card {
	var out []Card
	for _, c := range r.Cards {
		if c.Origin == o {
			out = append(out, c)
		}
	}
	return out
}

// cardPayload is the wire shape of chat_card and recommendation responses.
type cardPayload struct {
	Reply        string `json:"reply"`
	BookSearch   []Card `json:"book_search"`
	VectorSearch []Card `json:"vector_search"`
	Cards        []Card `json:"cards"`
}

func (p *cardPayload) normalize() *CardResponse {
	resp := &CardResponse{Reply: p.Reply}
	add := func(cards []Card, origin CardOrigin) {
		for _, c := range cards {
			c.Origin = origin
			resp.Cards = append(resp.Cards, c)
		}
	}
	add(p.BookSearch, OriginBookSearch)
	add(p.VectorSearch, OriginVectorSearch)
	add(p.Cards, OriginLegacy)
	return resp
}

type cardQuery struct {
	Query     string `json:"query"`
	K         int    `json:"k,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatCards asks the backend for a reply with book cards for query.
func (c *Client) ChatCards(ctx context.Context, query string) (*CardResponse, error) {
	query = strings.TrimSpace(query)
	if err := (ChatRequest{Query: query}).Validate(); err != nil {
		return nil, err
	}

	var payload cardPayload
	in := cardQuery{Query: query, K: c.cfg.CardLimit, SessionID: c.sessionID}
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.Routes.ChatCard, in, &payload); err != nil {
		return nil, err
	}
	return payload.normalize(), nil
}

// Recommendations asks for cards matching the user's topics. With no topics
// the backend picks them from the user's profile.
func (c *Client) Recommendations(ctx context.Context, topics []string) (*CardResponse, error) {
	body := map[string]any{}
	if len(topics) > 0 {
		body["topics"] = topics
	}

	var payload cardPayload
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.Routes.Recommendations, body, &payload); err != nil {
		return nil, err
	}
	return payload.normalize(), nil
}

// Disciplines lists the educational disciplines of the authenticated user.
func (c *Client) Disciplines(ctx context.Context) ([]string, error) {
	var payload struct {
		Disciplines *[]string `json:"educational_disciplines"`
	}
	route := c.cfg.Routes.Disciplines
	if err := c.doJSON(ctx, http.MethodGet, route, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Disciplines == nil {
		return nil, fmt.Errorf("%s: educational_disciplines missing: %w", route, ErrInvalidResponse)
	}
	return *payload.Disciplines, nil
}
