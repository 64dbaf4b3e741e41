package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	bookchat "github.com/djsadd/bookchat-go"
	"github.com/djsadd/bookchat-go/devserver"
	"github.com/djsadd/bookchat-go/sources"
)

type echoSource struct{}

func (echoSource) Name() string { return "echo" }

func (echoSource) Stream(ctx context.Context, prompt string) (<-chan sources.Chunk, error) {
	ch := make(chan sources.Chunk, 2)
	ch <- sources.Chunk{Text: "echo: "}
	ch <- sources.Chunk{Text: prompt}
	close(ch)
	return ch, nil
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return out.String(), err
}

func newBackend(t *testing.T, opts ...devserver.Option) string {
	t.Helper()
	srv := httptest.NewServer(devserver.New(echoSource{}, opts...))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestChatCommand(t *testing.T) {
	for _, f := range []bookchat.Framing{bookchat.FramingPlain, bookchat.FramingNDJSON, bookchat.FramingSSE} {
		t.Run(f.String(), func(t *testing.T) {
			url := newBackend(t, devserver.WithFraming(f), devserver.WithDownloadURL("/files/x.pdf"))

			out, err := run(t, "chat", "--base-url", url, "what", "is", "a", "heap")
			if err != nil {
				t.Fatalf("chat failed: %v", err)
			}
			if !strings.Contains(out, "echo: what is a heap") {
				t.Errorf("output missing reply: %q", out)
			}
			if !strings.Contains(out, "Download: /files/x.pdf") {
				t.Errorf("output missing download link: %q", out)
			}
		})
	}
}

func TestChatCommand_Unauthorized(t *testing.T) {
	url := newBackend(t, devserver.WithRequiredToken("secret"))
	t.Setenv("BOOKCHAT_TOKEN", "")

	_, err := run(t, "chat", "--base-url", url, "hi")
	if !bookchat.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}

	if _, err := run(t, "chat", "--base-url", url, "--token", "secret", "hi"); err != nil {
		t.Fatalf("chat with token failed: %v", err)
	}
}

func TestContextCommand(t *testing.T) {
	url := newBackend(t)

	out, err := run(t, "context", "--base-url", url, "--book", "b-1001", "--title", "Introduction to Algorithms", "--page", "7")
	if err != nil {
		t.Fatalf("context failed: %v", err)
	}
	if !strings.Contains(out, "Introduction to Algorithms") || !strings.Contains(out, "page 7") {
		t.Errorf("unexpected output: %q", out)
	}

	if _, err := run(t, "context", "--base-url", url, "--page", "7"); !bookchat.IsInvalidRequest(err) {
		t.Errorf("expected invalid request without a book, got %v", err)
	}
}

func TestCardsCommand(t *testing.T) {
	url := newBackend(t)

	out, err := run(t, "cards", "--base-url", url, "algorithms")
	if err != nil {
		t.Fatalf("cards failed: %v", err)
	}
	if !strings.Contains(out, "[book_search]") || !strings.Contains(out, "Introduction to Algorithms") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = run(t, "cards", "--base-url", url, "--recommend", "economics")
	if err != nil {
		t.Fatalf("recommendations failed: %v", err)
	}
	if !strings.Contains(out, "Principles of Economics") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestDisciplinesCommand(t *testing.T) {
	url := newBackend(t, devserver.WithDisciplines([]string{"Algorithms", "Economics"}))

	out, err := run(t, "disciplines", "--base-url", url)
	if err != nil {
		t.Fatalf("disciplines failed: %v", err)
	}
	if out != "Algorithms\nEconomics\n" {
		t.Errorf("output = %q", out)
	}
}

func TestServeCommand_RejectsBadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"framing", []string{"serve", "--framing", "xml"}, "unknown framing"},
		{"source", []string{"serve", "--source", "gpt"}, "unknown source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
