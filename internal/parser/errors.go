package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingFields is matched by errors.Is on a RejectError caused by absent
// required fields.
var ErrMissingFields = errors.New("missing required fields")

// RejectError describes why a candidate message did not produce a record.
type RejectError struct {
	// Missing lists absent required fields in the order coin, type, entry.
	Missing []string
	// Cause is set when parsing aborted unexpectedly.
	Cause error
}

func (e *RejectError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("signal rejected: %v", e.Cause)
	}
	return fmt.Sprintf("signal rejected: %s: %s", ErrMissingFields, strings.Join(e.Missing, ", "))
}

func (e *RejectError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrMissingFields
}
