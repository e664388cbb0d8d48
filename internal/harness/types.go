package harness

import "github.com/roach88/gantry/internal/schedule"

// CommitTrace records one published revision during a scenario run.
type CommitTrace struct {
	// Seq is the revision sequence number.
	Seq int64

	// Token is the branch token of the commit. Tokens are deterministic
	// within a run (the harness uses a sequence generator) but depend on
	// how many validation branches were opened, so they stay out of
	// golden snapshots.
	Token string

	// Entries is the published snapshot, keyed by identifier name.
	Entries map[string]any
}

// Result holds the outcome of a scenario run.
type Result struct {
	// Project is the built project after all steps committed.
	Project *schedule.Project

	// Trace lists every commit in order: the initial build first, then
	// one entry per step.
	Trace []CommitTrace
}

// Final returns the last committed snapshot.
func (r *Result) Final() map[string]any {
	if len(r.Trace) == 0 {
		return nil
	}
	return r.Trace[len(r.Trace)-1].Entries
}
