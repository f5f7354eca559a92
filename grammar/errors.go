package grammar

import (
	"fmt"
	"strings"
)

// SchemaError aggregates every validation failure the loader detected
// while processing a grammar document. The loader never stops at the
// first problem (spec.md §4.3 step 6 / §7): it keeps walking the
// document and returns every message it found.
type SchemaError struct {
	Errors []string
}

func (e *SchemaError) Error() string {
	if len(e.Errors) == 1 {
		return "grammar: " + e.Errors[0]
	}
	return "grammar: " + strings.Join(e.Errors, "; ")
}

// collector accumulates error messages while the loader walks a
// document, instead of returning on the first failure.
type collector struct {
	errs []string
}

func (c *collector) add(format string, args ...any) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *collector) ok() bool { return len(c.errs) == 0 }

func (c *collector) asError() *SchemaError {
	if c.ok() {
		return nil
	}
	return &SchemaError{Errors: c.errs}
}
