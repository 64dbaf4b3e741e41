package devserver

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	bookchat "github.com/djsadd/bookchat-go"
)

//go:embed catalogue.json
var catalogueJSON []byte

var catalogue = func() []bookchat.Card {
	var cards []bookchat.Card
	if err := json.Unmarshal(catalogueJSON, &cards); err != nil {
		panic(fmt.Sprintf("failed to parse embedded catalogue: %v", err))
	}
	return cards
}()

const defaultCardLimit = 5

// cardsResponse mirrors the backend's chat_card shape.
type cardsResponse struct {
	Reply        string          `json:"reply"`
	BookSearch   []bookchat.Card `json:"book_search"`
	VectorSearch []bookchat.Card `json:"vector_search"`
}

// search returns catalogue entries whose title, author or subjects mention any term.
func search(terms []string, limit int) []bookchat.Card {
	var out []bookchat.Card
	for _, c := range catalogue {
		if len(out) >= limit {
			break
		}
		haystack := strings.ToLower(c.Title + " " + c.Author + " " + c.Subjects)
		for _, term := range terms {
			if term != "" && strings.Contains(haystack, strings.ToLower(term)) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// snippets turns catalogue hits into full-text matches pointing at a page.
func snippets(cards []bookchat.Card, query string) []bookchat.Card {
	out := make([]bookchat.Card, 0, len(cards))
	for i, c := range cards {
		c.Page = fmt.Sprint(12 + 7*i)
		c.TextSnippet = fmt.Sprintf("...%s is discussed on this page...", query)
		c.Summary = ""
		out = append(out, c)
	}
	return out
}

func readJSON(w http.ResponseWriter, r *http.Request) (gjson.Result, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return gjson.Result{}, false
	}
	if len(data) == 0 {
		return gjson.Result{}, true
	}
	if !gjson.ValidBytes(data) {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(data), true
}

func (s *Server) handleChatCard(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(body.Get("query").String())
	if query == "" {
		http.Error(w, "query is required", http.StatusUnprocessableEntity)
		return
	}
	limit := defaultCardLimit
	if k := body.Get("k"); k.Exists() && k.Int() > 0 {
		limit = int(k.Int())
	}

	hits := search(strings.Fields(query), limit)
	resp := cardsResponse{
		Reply:        fmt.Sprintf("Found %d books for %q.", len(hits), query),
		BookSearch:   hits,
		VectorSearch: snippets(hits, query),
	}
	s.logger.Debug("chat card", "query", query, "hits", len(hits), "session", body.Get("sessionId").String())
	writeJSON(w, resp)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON(w, r)
	if !ok {
		return
	}

	var topics []string
	for _, t := range body.Get("topics").Array() {
		topics = append(topics, t.String())
	}
	if len(topics) == 0 {
		topics = s.disciplines
	}

	var terms []string
	for _, t := range topics {
		terms = append(terms, strings.Fields(t)...)
	}
	hits := search(terms, defaultCardLimit)
	writeJSON(w, cardsResponse{
		Reply:      fmt.Sprintf("Recommended for: %s.", strings.Join(topics, ", ")),
		BookSearch: hits,
	})
}

func (s *Server) handleDisciplines(w http.ResponseWriter, r *http.Request) {
	disciplines := s.disciplines
	if disciplines == nil {
		disciplines = []string{}
	}
	writeJSON(w, map[string][]string{"educational_disciplines": disciplines})
}
