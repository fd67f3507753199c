package config

// Equality names the comparison a view uses between successive selections.
type Equality string

const (
	// EqualityReference (default) treats maps and slices as equal only when
	// they are the same instance, and scalars by value. Structural sharing
	// makes this precise for documents written through drafts.
	EqualityReference Equality = "reference"

	// EqualityDeep compares selections structurally. Views over documents
	// rebuilt wholesale, for example by replace, stay quiet when the
	// content did not change.
	EqualityDeep Equality = "deep"
)

// Valid reports whether e is a known equality, treating the empty value as
// the default.
func (e Equality) Valid() bool {
	switch e {
	case "", EqualityReference, EqualityDeep:
		return true
	default:
		return false
	}
}
