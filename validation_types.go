package bookchat

// Severity indicates how serious a configuration warning is
type Severity string

const (
	SeverityInfo    Severity = "info"    // Informational (might be expected)
	SeverityWarning Severity = "warning" // Potentially problematic
)

// WarningCode is a machine-readable identifier for configuration warnings
type WarningCode string

const (
	// Transport warnings
	WarningCodeInsecureBaseURL  WarningCode = "BASE_URL_INSECURE"
	WarningCodeUnboundedTimeout WarningCode = "REQUEST_TIMEOUT_UNBOUNDED"

	// Credential warnings
	WarningCodeTokenMissing WarningCode = "TOKEN_MISSING"

	// Route warnings
	WarningCodeRouteDuplicate WarningCode = "ROUTE_DUPLICATE"

	// Card search warnings
	WarningCodeCardLimitDefault WarningCode = "CARD_LIMIT_BACKEND_DEFAULT"

	// File format warnings
	WarningCodeVersionUnsupported WarningCode = "CONFIG_VERSION_UNSUPPORTED"
)

// ConfigWarning is a configuration that validates but is probably not what was meant.
// Warnings never block a Client; Validate decides what is rejected.
type ConfigWarning struct {
	Code     WarningCode // Machine-readable code
	Field    string      // Config field the warning is about
	Value    any         // The suspicious value
	Message  string      // Human-readable warning
	Severity Severity    // How serious this warning is
}

// ConfigRule inspects a configuration and reports warnings.
type ConfigRule interface {
	// Name returns a human-readable name for this rule
	Name() string

	// Check inspects cfg and returns warnings
	Check(cfg Config) []ConfigWarning
}
