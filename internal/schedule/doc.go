// Package schedule is the scheduling domain model built on the graph
// engine: tasks with dates, dependencies and assignments, declared as
// calculations over identifiers and recomputed incrementally on commit.
//
// Field semantics follow the keep-duration precedence: end = start +
// duration, and when only the start moves, the duration is kept and the
// end recomputed. Proposing the end alone recomputes the duration against
// the unchanged start. Dates are whole days with an exclusive end, so a
// successor may start on the day its predecessor ends.
//
// Entity types are composed from capability interfaces (HasDates,
// HasDependencies, HasAssignments) rather than inheritance: Task carries
// all three, Milestone only dates and dependencies.
package schedule
