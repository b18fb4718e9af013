package craft

// CombinationKey identifies an attempted pair within one page lifetime.
// The key is unordered: combining A then B is the same attempt as B then A.
type CombinationKey struct {
	lo, hi string
}

// NewKey builds the key for ids a and b.
func NewKey(a, b string) CombinationKey {
	if b < a {
		a, b = b, a
	}
	return CombinationKey{lo: a, hi: b}
}

// Valid reports whether both ids are resolved and distinct.
func (k CombinationKey) Valid() bool {
	return k.lo != "" && k.hi != "" && k.lo != k.hi
}

func (k CombinationKey) String() string {
	return k.lo + "+" + k.hi
}
