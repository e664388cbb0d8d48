package graph

import "fmt"

// FieldIndex is a stable integer handle into a FieldTable. Identifiers of
// every entity instance of a type are laid out in FieldIndex order, so a
// field declared once can be addressed on any instance without a map
// lookup.
type FieldIndex int

// Calculation computes a derived field's value. It receives a CalcContext
// through which it reads other identifiers; each read is a potential
// recursion into the pull evaluator.
//
// Calculations MUST be pure functions of the values they read: same inputs,
// same output, no side effects. The engine may invoke a calculation zero,
// one, or several times speculatively before a value is accepted.
type Calculation func(ctx *CalcContext) (Value, error)

// Field is one declared slot of an entity type. A Field with a nil
// Calculation is atomic: its value can only be proposed directly, never
// derived.
//
// Fields are declared once per entity type and shared by every instance
// and every revision. Per-instance state lives in Quarks, never here.
type Field struct {
	// Name is the field's declared name, unique within its table.
	Name string

	// Index is the field's position in its FieldTable.
	Index FieldIndex

	// Level orders resolution within one commit pass. Lower levels are
	// resolved first so that, for example, per-task fields settle before
	// project-wide rollups pull them.
	Level int

	// Calc derives the field's value. Nil means atomic.
	Calc Calculation
}

// Atomic reports whether the field has no calculation.
func (f *Field) Atomic() bool { return f.Calc == nil }

// FieldTable is the per-entity-type arena of field declarations.
//
// Tables are built once at type-registration time and never mutated
// afterwards; they replace ambient global registries with explicit,
// index-addressed declarations.
type FieldTable struct {
	fields []*Field
	byName map[string]FieldIndex
	sealed bool
}

// NewFieldTable creates an empty field table.
func NewFieldTable() *FieldTable {
	return &FieldTable{byName: make(map[string]FieldIndex)}
}

// Declare registers a field and returns its stable index. Declaring a
// duplicate name or declaring after Seal panics: tables are assembled in
// package initialization, where a broken declaration is a programming
// error, not a runtime condition.
func (t *FieldTable) Declare(name string, level int, calc Calculation) FieldIndex {
	if t.sealed {
		panic(fmt.Sprintf("graph: field %q declared on sealed table", name))
	}
	if _, dup := t.byName[name]; dup {
		panic(fmt.Sprintf("graph: duplicate field declaration %q", name))
	}
	idx := FieldIndex(len(t.fields))
	t.fields = append(t.fields, &Field{Name: name, Index: idx, Level: level, Calc: calc})
	t.byName[name] = idx
	return idx
}

// Seal marks the table complete. Subsequent Declare calls panic.
func (t *FieldTable) Seal() { t.sealed = true }

// Field returns the declaration at idx.
func (t *FieldTable) Field(idx FieldIndex) *Field {
	return t.fields[idx]
}

// Lookup finds a field by name.
func (t *FieldTable) Lookup(name string) (*Field, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.fields[idx], true
}

// Len returns the number of declared fields.
func (t *FieldTable) Len() int { return len(t.fields) }
