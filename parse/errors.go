package parse

import "fmt"

// FatalStreamError terminates record-stream parsing outright, per
// spec.md §4.5 step 4 — a zero-length record, or a switch dispatch
// with no matching case and no default.
type FatalStreamError struct {
	Offset  int64
	Message string
}

func (e *FatalStreamError) Error() string {
	return fmt.Sprintf("parse: fatal stream error at offset %d: %s", e.Offset, e.Message)
}
