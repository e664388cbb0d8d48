package graph

// Identifier is a named computation slot: the binding of one Field
// declaration to one entity instance.
//
// An Identifier carries no value. It is created once, when its entity
// joins the graph, and shared by every Revision and Transaction from then
// on; the versioned state lives in Quarks keyed by the Identifier.
type Identifier struct {
	name  string
	field *Field
	owner any
}

// newIdentifier binds field to an owning entity instance.
func newIdentifier(entityName string, field *Field, owner any) *Identifier {
	return &Identifier{
		name:  entityName + "." + field.Name,
		field: field,
		owner: owner,
	}
}

// Name returns the qualified "<entity>.<field>" name.
func (i *Identifier) Name() string { return i.name }

// Field returns the shared field declaration.
func (i *Identifier) Field() *Field { return i.field }

// Owner returns the entity instance this identifier belongs to.
func (i *Identifier) Owner() any { return i.owner }

// Atomic reports whether the identifier has no calculation. An atomic
// identifier's value can only be set by a proposal, never derived.
func (i *Identifier) Atomic() bool { return i.field.Atomic() }

// Level returns the resolution ordering level inherited from the field.
func (i *Identifier) Level() int { return i.field.Level }

// EntityNode holds an entity instance's identifier bindings, laid out in
// FieldIndex order. Model types embed it and hand it to Graph.AddEntity.
type EntityNode struct {
	name   string
	table  *FieldTable
	idents []*Identifier
}

// NewEntityNode creates identifier bindings for every field in table.
// The owner is the model instance the identifiers report as theirs.
func NewEntityNode(name string, table *FieldTable, owner any) *EntityNode {
	n := &EntityNode{
		name:   name,
		table:  table,
		idents: make([]*Identifier, table.Len()),
	}
	for i, f := range table.fields {
		n.idents[i] = newIdentifier(name, f, owner)
	}
	return n
}

// Name returns the entity's name.
func (n *EntityNode) Name() string { return n.name }

// Table returns the entity type's field table.
func (n *EntityNode) Table() *FieldTable { return n.table }

// Identifier returns the binding for the field at idx.
func (n *EntityNode) Identifier(idx FieldIndex) *Identifier {
	return n.idents[idx]
}

// Identifiers returns all bindings in FieldIndex order. The returned slice
// is the node's own storage; callers must not mutate it.
func (n *EntityNode) Identifiers() []*Identifier { return n.idents }

// Entity is anything that can join a Graph. Model types implement it by
// embedding an EntityNode.
type Entity interface {
	GraphNode() *EntityNode
}
