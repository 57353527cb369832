package syntax

import "fmt"

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Diagnostic is a single parse or elaboration message tied to a source range.
type Diagnostic struct {
	Rng      Range
	Severity Severity
	Message  string
	File     string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%s: %s: %s", d.File, d.Rng.Start, d.Severity, d.Message)
}

func errorDiag(rng Range, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Rng: rng, Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}

func warningDiag(rng Range, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Rng: rng, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}
