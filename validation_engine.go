package bookchat

import (
	"sync"
)

// ConfigLinter runs configuration rules.
type ConfigLinter struct {
	rules []ConfigRule
	mu    sync.RWMutex
}

var (
	defaultLinter     *ConfigLinter
	defaultLinterOnce sync.Once
)

// NewConfigLinter creates a linter with the built-in rules registered.
func NewConfigLinter() *ConfigLinter {
	l := &ConfigLinter{}
	l.AddRule(insecureBaseURLRule{})
	l.AddRule(unboundedTimeoutRule{})
	l.AddRule(tokenRule{})
	l.AddRule(duplicateRouteRule{})
	l.AddRule(cardLimitRule{})
	l.AddRule(versionRule{})
	return l
}

// DefaultConfigLinter returns the shared linter used by Config.Warnings.
func DefaultConfigLinter() *ConfigLinter {
	defaultLinterOnce.Do(func() {
		defaultLinter = NewConfigLinter()
	})
	return defaultLinter
}

// AddRule adds a rule to the linter
func (l *ConfigLinter) AddRule(rule ConfigRule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = append(l.rules, rule)
}

// RemoveRule removes a rule by name
func (l *ConfigLinter) RemoveRule(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, rule := range l.rules {
		if rule.Name() == name {
			l.rules = append(l.rules[:i], l.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Lint runs every rule against cfg, in registration order.
func (l *ConfigLinter) Lint(cfg Config) []ConfigWarning {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var warnings []ConfigWarning
	for _, rule := range l.rules {
		warnings = append(warnings, rule.Check(cfg)...)
	}
	return warnings
}

// Warnings returns advisory findings about c from the default linter.
func (c Config) Warnings() []ConfigWarning {
	return DefaultConfigLinter().Lint(c)
}

// FilterWarningsBySeverity returns warnings matching the specified severities
func FilterWarningsBySeverity(warnings []ConfigWarning, severities ...Severity) []ConfigWarning {
	filtered := make([]ConfigWarning, 0)
	severityMap := make(map[Severity]bool)
	for _, s := range severities {
		severityMap[s] = true
	}

	for _, w := range warnings {
		if severityMap[w.Severity] {
			filtered = append(filtered, w)
		}
	}
	return filtered
}
