package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by services and storage adapters. Handlers map
// these to HTTP statuses with errors.Is/As.
var (
	// ErrNotFound covers both a missing entity and an entity owned by
	// another tenant; the two cases are indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated marks operations that require a caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError carries per-field detail for malformed input. The
// operation is never attempted when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field ValidationError.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// UnbalancedError is returned when an entry's debit and credit totals
// differ at 2-decimal precision. Both totals ride along so the caller can
// correct the input.
type UnbalancedError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("journal entry is unbalanced: debits (%s) != credits (%s)",
		e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2))
}

// DuplicateKeyError is a tenant-scoped uniqueness conflict (account code
// or journal reference).
type DuplicateKeyError struct {
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s: %q", e.Field, e.Value)
}
