package diag

import "fmt"

// Severity ranks a validation finding. Only SevError findings stop the unit
// from being compiled.
type Severity uint8

const (
	SevNote Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{SevNote: "note", SevWarning: "warning", SevError: "error"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// Blocking reports findings that fail compilation.
func (s Severity) Blocking() bool { return s >= SevError }
