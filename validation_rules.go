package bookchat

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// insecureBaseURLRule flags plain HTTP to anything but the local machine;
// bearer tokens would travel in clear text.
type insecureBaseURLRule struct{}

func (insecureBaseURLRule) Name() string { return "Insecure Base URL" }

func (insecureBaseURLRule) Check(cfg Config) []ConfigWarning {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme != "http" || isLoopback(u.Hostname()) {
		return nil
	}
	return []ConfigWarning{{
		Code:     WarningCodeInsecureBaseURL,
		Field:    "base_url",
		Value:    cfg.BaseURL,
		Message:  fmt.Sprintf("bearer tokens are sent unencrypted to %s", u.Host),
		Severity: SeverityWarning,
	}}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// unboundedTimeoutRule flags non-streaming calls that can hang forever.
type unboundedTimeoutRule struct{}

func (unboundedTimeoutRule) Name() string { return "Unbounded Request Timeout" }

func (unboundedTimeoutRule) Check(cfg Config) []ConfigWarning {
	if cfg.RequestTimeout > 0 {
		return nil
	}
	return []ConfigWarning{{
		Code:     WarningCodeUnboundedTimeout,
		Field:    "request_timeout",
		Value:    cfg.RequestTimeout,
		Message:  "card and discipline requests have no timeout",
		Severity: SeverityWarning,
	}}
}

// tokenRule notes that requests will go out anonymously.
type tokenRule struct{}

func (tokenRule) Name() string { return "Token Missing" }

func (tokenRule) Check(cfg Config) []ConfigWarning {
	if cfg.TokenEnv == "" || os.Getenv(cfg.TokenEnv) != "" {
		return nil
	}
	return []ConfigWarning{{
		Code:     WarningCodeTokenMissing,
		Field:    "token_env",
		Value:    cfg.TokenEnv,
		Message:  fmt.Sprintf("%s is not set; requests are sent without a bearer token", cfg.TokenEnv),
		Severity: SeverityInfo,
	}}
}

// duplicateRouteRule flags two operations configured with the same path.
type duplicateRouteRule struct{}

func (duplicateRouteRule) Name() string { return "Duplicate Route" }

func (duplicateRouteRule) Check(cfg Config) []ConfigWarning {
	routes := []struct{ field, path string }{
		{"routes.chat_stream", cfg.Routes.ChatStream},
		{"routes.generate_context", cfg.Routes.GenerateContext},
		{"routes.chat_card", cfg.Routes.ChatCard},
		{"routes.disciplines", cfg.Routes.Disciplines},
		{"routes.recommendations", cfg.Routes.Recommendations},
	}

	var warnings []ConfigWarning
	seen := make(map[string]string)
	for _, r := range routes {
		if first, ok := seen[r.path]; ok {
			warnings = append(warnings, ConfigWarning{
				Code:     WarningCodeRouteDuplicate,
				Field:    r.field,
				Value:    r.path,
				Message:  fmt.Sprintf("%s uses the same path as %s", r.field, first),
				Severity: SeverityWarning,
			})
			continue
		}
		seen[r.path] = r.field
	}
	return warnings
}

// cardLimitRule notes that k is omitted and the backend picks the count.
type cardLimitRule struct{}

func (cardLimitRule) Name() string { return "Card Limit" }

func (cardLimitRule) Check(cfg Config) []ConfigWarning {
	if cfg.CardLimit != 0 {
		return nil
	}
	return []ConfigWarning{{
		Code:     WarningCodeCardLimitDefault,
		Field:    "card_limit",
		Value:    cfg.CardLimit,
		Message:  "card_limit is 0; the backend decides how many cards to return",
		Severity: SeverityInfo,
	}}
}

// supportedConfigMajor is the config file format this client reads.
const supportedConfigMajor = "1"

// versionRule flags config files written for another format major version.
// Unknown keys are ignored by the loader, so a mismatch shows up only here.
type versionRule struct{}

func (versionRule) Name() string { return "Config Version" }

func (versionRule) Check(cfg Config) []ConfigWarning {
	major, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(cfg.Version), "v"), ".")
	if major == supportedConfigMajor {
		return nil
	}
	msg := fmt.Sprintf("config version %q is not a %s.x format; some settings may be ignored", cfg.Version, supportedConfigMajor)
	if cfg.Version == "" {
		msg = "config version is empty; assuming the " + supportedConfigMajor + ".x format"
	}
	return []ConfigWarning{{
		Code:     WarningCodeVersionUnsupported,
		Field:    "version",
		Value:    cfg.Version,
		Message:  msg,
		Severity: SeverityWarning,
	}}
}
