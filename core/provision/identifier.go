package provision

// Identifier names one object inside one target.
type Identifier struct {
	// TargetID is the id of the target the object lives in.
	TargetID string `json:"target_id"`

	// ObjectID is the target-specific object id, e.g. a distinguished name.
	ObjectID string `json:"object_id"`

	// Container optionally names the structural container of the object.
	Container *Identifier `json:"container,omitempty"`
}

// Canonicalizer turns an object id into the form used for equality checks.
type Canonicalizer interface {
	Canonical(objectID string) string
}

// CanonicalFunc adapts a plain function to the Canonicalizer interface.
type CanonicalFunc func(objectID string) string

// Canonical implements Canonicalizer.
func (f CanonicalFunc) Canonical(objectID string) string {
	return f(objectID)
}

// IsZero reports whether the identifier names nothing.
func (i Identifier) IsZero() bool {
	return i.ObjectID == ""
}

// String returns "target:objectID".
func (i Identifier) String() string {
	return i.TargetID + ":" + i.ObjectID
}

// Key returns a map key that is stable across textual variants of the same object id.
func (i Identifier) Key(c Canonicalizer) string {
	id := i.ObjectID
	if c != nil {
		id = c.Canonical(id)
	}
	return i.TargetID + "\x00" + id
}

// Equal compares two identifiers using the target's canonical form.
func (i Identifier) Equal(other Identifier, c Canonicalizer) bool {
	return i.Key(c) == other.Key(c)
}
