package provision

import "strings"

// Attribute is a named set of values. Values keep insertion order so that
// diffs and wire output are reproducible.
type Attribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Reference links an object to another object of the same target.
type Reference struct {
	Name   string     `json:"name"`
	Target Identifier `json:"target"`
}

// ProvisionedObject is the target-shaped representation of a root object,
// either desired (resolved from the source) or actual (read from the target).
type ProvisionedObject struct {
	Identifier Identifier  `json:"identifier"`
	Attributes []Attribute `json:"attributes,omitempty"`
	References []Reference `json:"references,omitempty"`
}

// NewObject returns an empty object with the given identifier.
func NewObject(id Identifier) *ProvisionedObject {
	return &ProvisionedObject{Identifier: id}
}

// Attribute returns the values of the named attribute. Attribute names are
// matched case-insensitively, as directory attribute types are.
func (o *ProvisionedObject) Attribute(name string) []string {
	if i := o.attributeIndex(name); i >= 0 {
		return o.Attributes[i].Values
	}
	return nil
}

// HasAttribute reports whether the named attribute carries at least one value.
func (o *ProvisionedObject) HasAttribute(name string) bool {
	return len(o.Attribute(name)) > 0
}

// AttributeNames returns attribute names in iteration order.
func (o *ProvisionedObject) AttributeNames() []string {
	names := make([]string, 0, len(o.Attributes))
	for _, a := range o.Attributes {
		names = append(names, a.Name)
	}
	return names
}

// SetAttribute replaces the values of an attribute, keeping its position.
// Setting an empty value set removes the attribute.
func (o *ProvisionedObject) SetAttribute(name string, values []string) {
	values = UniqueValues(values)
	i := o.attributeIndex(name)
	switch {
	case len(values) == 0 && i >= 0:
		o.Attributes = append(o.Attributes[:i], o.Attributes[i+1:]...)
	case len(values) == 0:
	case i >= 0:
		o.Attributes[i].Values = values
	default:
		o.Attributes = append(o.Attributes, Attribute{Name: name, Values: values})
	}
}

// AddValues adds values to an attribute, ignoring those already present.
func (o *ProvisionedObject) AddValues(name string, values []string) {
	o.SetAttribute(name, append(append([]string{}, o.Attribute(name)...), values...))
}

// RemoveValues removes values from an attribute.
func (o *ProvisionedObject) RemoveValues(name string, values []string) {
	o.SetAttribute(name, Subtract(o.Attribute(name), values))
}

// ReferencesNamed returns the targets of all references with the given name.
func (o *ProvisionedObject) ReferencesNamed(name string) []Identifier {
	var ids []Identifier
	for _, r := range o.References {
		if strings.EqualFold(r.Name, name) {
			ids = append(ids, r.Target)
		}
	}
	return ids
}

// AddReference appends a reference unless an identical one exists.
// It reports whether the reference was added.
func (o *ProvisionedObject) AddReference(ref Reference, c Canonicalizer) bool {
	for _, r := range o.References {
		if strings.EqualFold(r.Name, ref.Name) && r.Target.Equal(ref.Target, c) {
			return false
		}
	}
	o.References = append(o.References, ref)
	return true
}

// RemoveReference drops every reference equal to ref.
func (o *ProvisionedObject) RemoveReference(ref Reference, c Canonicalizer) {
	kept := o.References[:0]
	for _, r := range o.References {
		if strings.EqualFold(r.Name, ref.Name) && r.Target.Equal(ref.Target, c) {
			continue
		}
		kept = append(kept, r)
	}
	o.References = kept
}

// Apply applies attribute and reference deltas in place. Targets that store
// whole objects use it to implement Modify.
func (o *ProvisionedObject) Apply(attrs []AttributeDelta, refs []ReferenceDelta, c Canonicalizer) {
	for _, d := range attrs {
		switch d.Mode {
		case ModeAddOnly:
			o.AddValues(d.Name, d.Values)
		default:
			o.SetAttribute(d.Name, d.Values)
		}
	}
	for _, d := range refs {
		for _, id := range d.Remove {
			o.RemoveReference(Reference{Name: d.Name, Target: id}, c)
		}
		for _, id := range d.Add {
			o.AddReference(Reference{Name: d.Name, Target: id}, c)
		}
	}
}

// Clone returns a deep copy of the object.
func (o *ProvisionedObject) Clone() *ProvisionedObject {
	if o == nil {
		return nil
	}
	c := &ProvisionedObject{Identifier: o.Identifier}
	if len(o.Attributes) > 0 {
		c.Attributes = make([]Attribute, len(o.Attributes))
		for i, a := range o.Attributes {
			c.Attributes[i] = Attribute{Name: a.Name, Values: append([]string(nil), a.Values...)}
		}
	}
	if len(o.References) > 0 {
		c.References = append([]Reference(nil), o.References...)
	}
	return c
}

func (o *ProvisionedObject) attributeIndex(name string) int {
	for i, a := range o.Attributes {
		if strings.EqualFold(a.Name, name) {
			return i
		}
	}
	return -1
}

// UniqueValues drops duplicates and empty strings, keeping first-seen order.
func UniqueValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Subtract returns the values of a that are not in b, in a's order.
func Subtract(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(b))
	for _, v := range b {
		drop[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := drop[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
