package graph

// CalcContext is handed to a Calculation while the pull evaluator resolves
// its identifier. Every Read is a potential recursion into dependencies;
// the context records the dependency edges as the calculation asks for
// values.
//
// Calculations must not retain the context past their return.
type CalcContext struct {
	tx    *Transaction
	ident *Identifier
	quark *Quark
}

// Identifier returns the identifier being computed.
func (c *CalcContext) Identifier() *Identifier { return c.ident }

// Owner returns the entity instance the computed identifier belongs to.
func (c *CalcContext) Owner() any { return c.ident.Owner() }

// Read resolves another identifier's current value inside the same pass
// and records a normal dependency edge: if that identifier changes later,
// this calculation is invalidated.
func (c *CalcContext) Read(id *Identifier) (Value, error) {
	v, err := c.tx.resolve(id)
	if err != nil {
		return nil, err
	}
	if id != c.ident {
		c.tx.recordEdge(id, c.quark, EdgeNormal)
	}
	return v, nil
}

// ReadPrevious performs the current-or-previous read: it returns the
// pending candidate preserved for this pass when one exists, otherwise the
// value from the base Revision - never triggering recomputation. It is how
// a calculation separates "what was" from "what is being recomputed", e.g.
// keeping the old rollup when nothing relevant changed.
//
// The read is recorded as a past edge so commit invalidation still knows
// this calculation looked at the identifier's history.
func (c *CalcContext) ReadPrevious(id *Identifier) (Value, error) {
	var v Value
	if q, ok := c.tx.entries[id]; ok {
		if pv, has := q.Proposed(); has {
			v = pv
		}
	}
	if v == nil {
		if bv, ok := c.tx.base.Value(id); ok {
			v = bv
		}
	}
	if id != c.ident {
		c.tx.recordEdge(id, c.quark, EdgePast)
	}
	return v, nil
}

// Proposed returns the value explicitly proposed for id in this
// Transaction, if any. Fallbacks preserved by a recomputation pass do not
// count: calculations use this to detect user intent ("was the end date
// itself edited?"), not to read state.
func (c *CalcContext) Proposed(id *Identifier) (Value, bool) {
	if q, ok := c.tx.entries[id]; ok {
		return q.ProposedExplicit()
	}
	return nil, false
}

// ProposedArgs returns the side-channel arguments recorded with the
// proposal for the identifier being computed, or nil when the value was
// not proposed in this Transaction.
func (c *CalcContext) ProposedArgs() []Value {
	if q, ok := c.tx.entries[c.ident]; ok {
		return q.ProposedArgs()
	}
	return nil
}
