package graph

import (
	"errors"
	"fmt"
	"strings"
)

// GraphError represents an error detected by the graph engine.
//
// Engine errors include:
//   - Cycle detection: resolving an identifier required its own value
//   - Shadow write: setting a value through a non-origin Quark
//   - Stale base: committing a Transaction whose base Revision was superseded
//   - Closed transaction: proposing or reading after commit/discard
//
// GraphError includes structured fields for diagnostics.
type GraphError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Identifier names the identifier at fault, if any.
	Identifier string

	// Chain is the resolution path for cycle errors, in read order,
	// ending with the identifier that closed the cycle.
	Chain []string
}

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeCycle indicates a cyclic dependency within one epoch.
	ErrCodeCycle ErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeShadowWrite indicates a value write through a non-origin Quark.
	// This is a programming-contract violation, not a recoverable condition.
	ErrCodeShadowWrite ErrorCode = "INVALID_SHADOW_WRITE"

	// ErrCodeStaleBase indicates the Transaction's base Revision is no
	// longer the published one.
	ErrCodeStaleBase ErrorCode = "STALE_BASE_REVISION"

	// ErrCodeClosed indicates use of a Transaction that already
	// committed, rejected or was discarded.
	ErrCodeClosed ErrorCode = "TRANSACTION_CLOSED"

	// ErrCodeUnknownIdentifier indicates a read of an identifier that has
	// never joined the graph or has left it.
	ErrCodeUnknownIdentifier ErrorCode = "UNKNOWN_IDENTIFIER"
)

// Error implements the error interface.
func (e *GraphError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("%s: %s (chain: %s)", e.Code, e.Message, strings.Join(e.Chain, " -> "))
	}
	if e.Identifier != "" {
		return fmt.Sprintf("%s: %s (identifier=%s)", e.Code, e.Message, e.Identifier)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCycleError reports whether err is a cyclic-dependency error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == ErrCodeCycle
	}
	return false
}

// IsUnknownIdentifierError reports whether err is a read of an identifier
// that has left the graph. Uses errors.As to handle wrapped errors.
func IsUnknownIdentifierError(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == ErrCodeUnknownIdentifier
	}
	return false
}

// IsShadowWriteError reports whether err is a shadow-write violation.
// Uses errors.As to handle wrapped errors.
func IsShadowWriteError(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == ErrCodeShadowWrite
	}
	return false
}

// NewCycleError creates a GraphError for a detected cycle. The chain is
// the resolution path from the first visit of the offending identifier to
// the read that closed the loop.
func NewCycleError(chain []string) *GraphError {
	id := ""
	if len(chain) > 0 {
		id = chain[len(chain)-1]
	}
	return &GraphError{
		Code:       ErrCodeCycle,
		Message:    "identifier transitively requires its own value",
		Identifier: id,
		Chain:      chain,
	}
}

// NewShadowWriteError creates a GraphError for a write through a shadow.
func NewShadowWriteError(identifier string) *GraphError {
	return &GraphError{
		Code:       ErrCodeShadowWrite,
		Message:    "value may only be set through the origin entry",
		Identifier: identifier,
	}
}
