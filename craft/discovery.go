package craft

import "strings"

// Element is the persisted name/icon pair. Legacy ledger entries may lack
// the emoji field.
type Element struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji,omitempty"`
}

// Discovery records that combining A with B produced Result.
type Discovery struct {
	CombinationA Element `json:"combinationA"`
	CombinationB Element `json:"combinationB"`
	Result       Element `json:"result"`
}

// Identity is the semantic identity of a discovery: the three trimmed names.
// Icons do not participate.
type Identity struct {
	A, B, Result string
}

// Identity returns d's deduplication key.
func (d Discovery) Identity() Identity {
	return Identity{
		A:      strings.TrimSpace(d.CombinationA.Name),
		B:      strings.TrimSpace(d.CombinationB.Name),
		Result: strings.TrimSpace(d.Result.Name),
	}
}

// Normalized returns a copy of d with every field trimmed.
func (d Discovery) Normalized() Discovery {
	return Discovery{
		CombinationA: d.CombinationA.normalized(),
		CombinationB: d.CombinationB.normalized(),
		Result:       d.Result.normalized(),
	}
}

func (e Element) normalized() Element {
	return Element{Name: strings.TrimSpace(e.Name), Emoji: strings.TrimSpace(e.Emoji)}
}

// NewDiscovery binds the pre-click items a and b to the result item.
func NewDiscovery(a, b, result Item) Discovery {
	return Discovery{
		CombinationA: a.Element(),
		CombinationB: b.Element(),
		Result:       result.Element(),
	}.Normalized()
}

// Ledger is the ordered collection of all persisted discoveries.
type Ledger []Discovery

// Contains reports whether a discovery with the same identity as d exists.
func (l Ledger) Contains(d Discovery) bool {
	id := d.Identity()
	for _, e := range l {
		if e.Identity() == id {
			return true
		}
	}
	return false
}

// Dedup returns l with later entries sharing an identity with an earlier one
// removed. Order of first occurrence is preserved.
func (l Ledger) Dedup() Ledger {
	seen := make(map[Identity]struct{}, len(l))
	out := make(Ledger, 0, len(l))
	for _, d := range l {
		id := d.Identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, d)
	}
	return out
}
