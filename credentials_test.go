package bookchat

import "testing"

func TestStaticAndEnvToken(t *testing.T) {
	if got := StaticToken("  abc \n").Token(); got != "abc" {
		t.Errorf("StaticToken = %q", got)
	}

	t.Setenv("BOOKCHAT_TEST_TOKEN", " from-env ")
	if got := EnvToken("BOOKCHAT_TEST_TOKEN").Token(); got != "from-env" {
		t.Errorf("EnvToken = %q", got)
	}
	if got := EnvToken("BOOKCHAT_TEST_UNSET").Token(); got != "" {
		t.Errorf("unset EnvToken = %q", got)
	}
}

func TestChainCredentials(t *testing.T) {
	persistent := NewTokenStore("")
	session := NewTokenStore("session-token")
	chain := ChainCredentials{persistent, nil, session}

	if got := chain.Token(); got != "session-token" {
		t.Errorf("Token() = %q, want session-token", got)
	}

	persistent.Set("persistent-token")
	if got := chain.Token(); got != "persistent-token" {
		t.Errorf("Token() = %q, want persistent-token", got)
	}

	chain.Invalidate()
	if persistent.Authenticated() || session.Authenticated() {
		t.Error("Invalidate should clear every store in the chain")
	}
	if got := chain.Token(); got != "" {
		t.Errorf("Token() after Invalidate = %q", got)
	}
}

func TestTokenStore(t *testing.T) {
	s := NewTokenStore(" t1 ")
	if !s.Authenticated() || s.Token() != "t1" {
		t.Fatalf("unexpected initial state %q", s.Token())
	}

	s.Set("t2")
	if s.Token() != "t2" {
		t.Errorf("Token() = %q", s.Token())
	}

	s.Clear()
	if s.Authenticated() {
		t.Error("Clear should drop the token")
	}
}
