package harness

import (
	"errors"
	"fmt"
)

// Verify checks every assertion against the run's final snapshot and the
// trace. All failures are collected, not just the first.
func Verify(result *Result, assertions []Assertion) error {
	final := result.Final()
	var errs []error

	for i, a := range assertions {
		if err := verifyOne(result, final, &a); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func verifyOne(result *Result, final map[string]any, a *Assertion) error {
	switch a.Type {
	case AssertValue:
		got, ok := final[a.Ident]
		if !ok {
			return fmt.Errorf("value: %s is not in the final snapshot", a.Ident)
		}
		n, ok := asInt(got)
		if !ok {
			return fmt.Errorf("value: %s is %v (%T), not an integer", a.Ident, got, got)
		}
		if n != *a.Value {
			return fmt.Errorf("value: %s = %d, want %d", a.Ident, n, *a.Value)
		}

	case AssertTombstone:
		got, ok := final[a.Ident]
		if !ok {
			return fmt.Errorf("tombstone: %s is not in the final snapshot", a.Ident)
		}
		m, ok := got.(map[string]any)
		if !ok || m["tombstone"] != true {
			return fmt.Errorf("tombstone: %s = %v, want an explicit tombstone", a.Ident, got)
		}

	case AssertAbsent:
		if got, ok := final[a.Ident]; ok {
			return fmt.Errorf("absent: %s = %v, want no entry", a.Ident, got)
		}

	case AssertCommitCount:
		if len(result.Trace) != a.Count {
			return fmt.Errorf("commit_count: %d commits, want %d", len(result.Trace), a.Count)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// asInt accepts the integer encodings a snapshot can carry.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
