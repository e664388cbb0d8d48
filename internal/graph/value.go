package graph

// Value is the dynamic payload of an identifier. The engine never
// interprets values; calculations do.
type Value = any

// tombStone is the unexported type behind TombStone so that no other
// value can compare equal to it.
type tombStone struct{}

func (tombStone) String() string { return "TombStone" }

// TombStone is the sentinel meaning "explicitly has no value". It is
// distinct from an unset value (nil): a calculation that decides a field
// must be empty returns TombStone, while nil means the identifier has not
// been resolved or proposed at all.
var TombStone Value = tombStone{}

// IsTombStone reports whether v is the TombStone sentinel.
func IsTombStone(v Value) bool {
	_, ok := v.(tombStone)
	return ok
}

// IsUnset reports whether v carries no value at all (neither a real value
// nor the explicit TombStone).
func IsUnset(v Value) bool {
	return v == nil
}
