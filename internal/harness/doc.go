// Package harness runs declarative scheduling scenarios.
//
// A scenario YAML file names an initial project, a sequence of edit steps
// and a set of assertions over the final schedule. The harness builds the
// project, commits after every step, and records each published revision
// as a trace. Traces serialize to canonical JSON, so a scenario's trace
// can be compared byte for byte against a golden file.
package harness
