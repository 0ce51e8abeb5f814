// Package diag provides severity-aware diagnostics returned alongside results
package diag

import "fmt"

// Severity indicates diagnostic impact level
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON output
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Diagnostic is a structured, non-fatal finding produced during a computation
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Subject != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", d.Severity, d.Code, d.Message, d.Subject)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Message)
}

// Diagnostic codes
const (
	CodeDishNotFound      = "DISH_NOT_FOUND"
	CodeCourseNotFound    = "COURSE_NOT_FOUND"
	CodePriceNotFound     = "PRICE_NOT_FOUND"
	CodeRuleFallback      = "RULE_FALLBACK"
	CodeDiscountNotMet    = "DISCOUNT_NOT_APPLIED"
	CodeAddonNotFound     = "ADDON_NOT_FOUND"
	CodeAddonNotPermitted = "ADDON_NOT_PERMITTED"
	CodeStoreFileMissing  = "STORE_FILE_MISSING"
	CodeInvalidPrice      = "INVALID_PRICE"
)

// List is an ordered collection of diagnostics
type List []Diagnostic

// Add appends a diagnostic built from its parts
func (l *List) Add(code string, sev Severity, subject, format string, args ...any) {
	*l = append(*l, Diagnostic{
		Code:     code,
		Severity: sev,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any diagnostic is error severity
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// WithCode returns the diagnostics carrying the given code
func (l List) WithCode(code string) List {
	var out List
	for _, d := range l {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// NewDishNotFound creates a diagnostic for an unknown dish id
func NewDishNotFound(dishID string) Diagnostic {
	return Diagnostic{
		Code:     CodeDishNotFound,
		Severity: SeverityWarning,
		Subject:  dishID,
		Message:  fmt.Sprintf("dish %q is not defined in the catalog", dishID),
	}
}

// NewPriceNotFound creates a diagnostic for an ingredient without a unit price
func NewPriceNotFound(ingredient, dishID string) Diagnostic {
	return Diagnostic{
		Code:     CodePriceNotFound,
		Severity: SeverityWarning,
		Subject:  ingredient,
		Message:  fmt.Sprintf("unit price not found, costed as 0 in dish %q", dishID),
	}
}
