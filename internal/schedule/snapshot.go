package schedule

import (
	"sort"

	"github.com/roach88/gantry/internal/dates"
	"github.com/roach88/gantry/internal/graph"
)

// Snapshot flattens the published revision into canonically encodable
// values keyed by identifier name. Journals and traces consume this form;
// it is what commit fingerprints are computed over.
func (p *Project) Snapshot() map[string]any {
	snap := make(map[string]any)
	p.graph.Revision().Each(func(id *graph.Identifier, q *graph.Quark) {
		if v, ok := EncodeValue(q.GetValue()); ok {
			snap[id.Name()] = v
		}
	})
	return snap
}

// EncodeValue converts a graph value into the canonical JSON subset.
// Unencodable values report false and stay out of snapshots.
func EncodeValue(v graph.Value) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case dates.Day:
		return int(val), true
	case int:
		return val, true
	case int64:
		return val, true
	case bool:
		return val, true
	case string:
		return val, true
	case []*Task:
		names := make([]any, len(val))
		for i, t := range val {
			names[i] = t.Name()
		}
		return names, true
	case []Assignment:
		out := make([]any, len(val))
		for i, a := range val {
			out[i] = map[string]any{"resource": a.Resource, "units": a.Units}
		}
		return out, true
	default:
		if graph.IsTombStone(v) {
			return map[string]any{"tombstone": true}, true
		}
		return nil, false
	}
}

// SnapshotKeys returns the snapshot's identifier names in sorted order,
// for deterministic trace rendering.
func SnapshotKeys(snap map[string]any) []string {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
