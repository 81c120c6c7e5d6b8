package fhir

import "fmt"

// Severity classifies a diagnostic recorded during a batch run.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// Diagnostic codes. Document-level failures use PARSE/TYPE/WRITE codes,
// field-level warnings use REF/MAP codes, and policy skips use SKIP codes.
const (
	CodeParse         = "PARSE001"
	CodeMissingType   = "TYPE001"
	CodeWrite         = "WRITE001"
	CodeUnresolvedRef = "REF001"
	CodeSkippedType   = "SKIP001"
	CodeSkippedFilter = "SKIP002"
	CodeNoDeclaration = "MAP001"
	CodeDatasetFile   = "MAP002"
	CodeBadDefinition = "MAP003"
)

// Diagnostic is one accumulated finding from a batch run. Runs collect
// diagnostics instead of aborting so every document gets attempted.
type Diagnostic struct {
	Stage        string   `json:"stage"` // "index", "transform", "write", "mappings"
	Code         string   `json:"code"`
	Message      string   `json:"message"`
	File         string   `json:"file,omitempty"`
	ResourceType string   `json:"resource_type,omitempty"`
	ResourceID   string   `json:"resource_id,omitempty"`
	Severity     Severity `json:"severity"`
}

// Error implements the error interface
func (d Diagnostic) Error() string {
	if d.File != "" {
		return fmt.Sprintf("%s: %s: %s", d.File, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// IsError returns true at Error or Fatal severity.
func (d Diagnostic) IsError() bool {
	return d.Severity == Error || d.Severity == Fatal
}

// IsWarning returns true at Warning severity.
func (d Diagnostic) IsWarning() bool {
	return d.Severity == Warning
}

// CountSeverity counts diagnostics recorded at exactly the given severity.
func CountSeverity(diags []Diagnostic, s Severity) int {
	n := 0
	for _, d := range diags {
		if d.Severity == s {
			n++
		}
	}
	return n
}
