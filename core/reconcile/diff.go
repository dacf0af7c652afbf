package reconcile

import (
	"strings"

	"provisioner/core/provision"
	"provisioner/core/resolver"
)

// Policy tells Compare which attributes and references are managed and how.
// *resolver.Resolver implements it.
type Policy interface {
	AttributeMapping(name string) (resolver.Mapping, bool)
	ManagedReferences() []string
}

// Existence decides the single operation for one object from its desired and
// actual representations. Either may be nil. It returns nil when nothing must change.
func Existence(desired, actual *provision.ProvisionedObject, policy Policy, c provision.Canonicalizer) *provision.MutationOp {
	switch {
	case desired == nil && actual == nil:
		return nil
	case desired == nil:
		op := provision.Delete(actual.Identifier, true)
		return &op
	case actual == nil:
		op := provision.Create(desired)
		return &op
	}

	attrs, refs := Compare(desired, actual, policy, c)
	if len(attrs) == 0 && len(refs) == 0 {
		return nil
	}
	op := provision.Modify(actual.Identifier, attrs, refs)
	return &op
}

// Compare computes the attribute and reference deltas that turn actual into desired.
// Attributes without a mapping are owned by the target and never touched.
func Compare(desired, actual *provision.ProvisionedObject, policy Policy, c provision.Canonicalizer) ([]provision.AttributeDelta, []provision.ReferenceDelta) {
	var attrs []provision.AttributeDelta
	for _, name := range attributeUnion(desired, actual) {
		mapping, managed := policy.AttributeMapping(name)
		if !managed {
			continue
		}
		if d, ok := attributeDelta(name, mapping, desired.Attribute(name), actual.Attribute(name)); ok {
			attrs = append(attrs, d)
		}
	}

	var refs []provision.ReferenceDelta
	for _, name := range policy.ManagedReferences() {
		if d, ok := referenceDelta(name, desired.ReferencesNamed(name), actual.ReferencesNamed(name), c); ok {
			refs = append(refs, d)
		}
	}
	return attrs, refs
}

func attributeDelta(name string, m resolver.Mapping, want, have []string) (provision.AttributeDelta, bool) {
	added := provision.Subtract(want, have)
	removed := provision.Subtract(have, want)

	switch m.Mode {
	case provision.ModeAddOnly:
		if len(added) == 0 {
			return provision.AttributeDelta{}, false
		}
		return provision.AttributeDelta{Name: name, Mode: provision.ModeAddOnly, Values: added}, true
	case provision.ModeRetainAll:
		if !m.Force || len(want) == 0 || len(added)+len(removed) == 0 {
			return provision.AttributeDelta{}, false
		}
	default:
		if len(added)+len(removed) == 0 {
			return provision.AttributeDelta{}, false
		}
	}
	return provision.AttributeDelta{Name: name, Mode: provision.ModeReplace, Values: append([]string{}, want...)}, true
}

func referenceDelta(name string, want, have []provision.Identifier, c provision.Canonicalizer) (provision.ReferenceDelta, bool) {
	d := provision.ReferenceDelta{
		Name:   name,
		Add:    subtractIdentifiers(want, have, c),
		Remove: subtractIdentifiers(have, want, c),
	}
	return d, len(d.Add)+len(d.Remove) > 0
}

// subtractIdentifiers returns the identifiers of a missing from b, in a's order.
func subtractIdentifiers(a, b []provision.Identifier, c provision.Canonicalizer) []provision.Identifier {
	drop := make(map[string]struct{}, len(b))
	for _, id := range b {
		drop[id.Key(c)] = struct{}{}
	}
	var out []provision.Identifier
	for _, id := range a {
		if _, ok := drop[id.Key(c)]; !ok {
			drop[id.Key(c)] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// attributeUnion returns the attribute names of desired followed by those only in actual.
func attributeUnion(desired, actual *provision.ProvisionedObject) []string {
	names := desired.AttributeNames()
	for _, name := range actual.AttributeNames() {
		found := false
		for _, n := range names {
			if strings.EqualFold(n, name) {
				found = true
				break
			}
		}
		if !found {
			names = append(names, name)
		}
	}
	return names
}
