package resolver

import (
	"errors"
	"fmt"
	"strings"

	"provisioner/core/naming"
	"provisioner/core/provision"
)

// Lookup turns a raw reference value into a target object by searching the target.
type Lookup struct {
	Base      string                `yaml:"base" json:"base"`
	Attribute string                `yaml:"attribute" json:"attribute"`
	Scope     provision.SearchScope `yaml:"scope" json:"scope,omitempty"`
}

// Mapping binds a definition to a target attribute or reference.
type Mapping struct {
	Definition string
	Attribute  string
	Reference  string

	// Mode applies to attributes only.
	Mode provision.AttributeMode

	// Required turns an empty value set into a ResolutionError.
	Required bool

	// Force makes a retain_all attribute be written anyway.
	Force bool

	// Lookup, for references, resolves each value through a target search.
	Lookup *Lookup
}

// Config is the definition set of one target.
type Config struct {
	TargetID string

	// Identifier is the id of the definition yielding the object id.
	Identifier string

	Definitions []Definition
	Mappings    []Mapping

	// Canonicalizer compares reference identifiers. Defaults to naming.Canonical.
	Canonicalizer provision.Canonicalizer
}

// PendingReference is a reference value that still has to be looked up in the target.
type PendingReference struct {
	Name   string
	Value  string
	Lookup Lookup
}

// Resolution is the result of resolving one entity.
type Resolution struct {
	// Identifier locates the target object. It is set even when Object is nil,
	// as long as the entity's name maps into the target.
	Identifier provision.Identifier

	// Object is the desired object, or nil when the entity does not participate.
	Object *provision.ProvisionedObject

	// Lookups are references left for the caller to resolve against the target.
	Lookups []PendingReference
}

// Resolver resolves source entities into desired objects of one target.
// It is immutable after New and safe for concurrent use.
type Resolver struct {
	cfg              Config
	order            []Definition
	identifier       Definition
	needsDescendants bool
}

// New validates the definition set and returns a Resolver.
func New(cfg Config) (*Resolver, error) {
	if cfg.TargetID == "" {
		return nil, &provision.ConfigurationError{Reason: "target id is required"}
	}
	if cfg.Canonicalizer == nil {
		cfg.Canonicalizer = provision.CanonicalFunc(naming.Canonical)
	}

	cfg.Mappings = append([]Mapping(nil), cfg.Mappings...)

	order, err := sortDefinitions(cfg.TargetID, cfg.Definitions)
	if err != nil {
		return nil, err
	}

	r := &Resolver{cfg: cfg, order: order}
	for _, d := range order {
		if d.ID() == cfg.Identifier {
			r.identifier = d
		}
		if dr, ok := d.(descendantReader); ok && dr.ReadsDescendants() {
			r.needsDescendants = true
		}
	}
	if r.identifier == nil {
		return nil, &provision.ConfigurationError{
			TargetID: cfg.TargetID,
			Reason:   fmt.Sprintf("identifier definition %q is not defined", cfg.Identifier),
		}
	}

	for i, m := range cfg.Mappings {
		if (m.Attribute == "") == (m.Reference == "") {
			return nil, &provision.ConfigurationError{
				TargetID: cfg.TargetID,
				Reason:   fmt.Sprintf("mapping %d of %q must name exactly one attribute or reference", i, m.Definition),
			}
		}
		if !r.defined(m.Definition) {
			return nil, &provision.ConfigurationError{
				TargetID: cfg.TargetID,
				Reason:   fmt.Sprintf("mapping %d uses unknown definition %q", i, m.Definition),
			}
		}
		if m.Lookup != nil && m.Reference == "" {
			return nil, &provision.ConfigurationError{
				TargetID: cfg.TargetID,
				Reason:   fmt.Sprintf("mapping %d: lookup is only valid for references", i),
			}
		}
		if m.Mode == "" {
			r.cfg.Mappings[i].Mode = provision.ModeReplace
		}
	}
	return r, nil
}

// TargetID returns the target the resolver produces objects for.
func (r *Resolver) TargetID() string { return r.cfg.TargetID }

// Canonicalizer returns the canonicalizer used for reference identifiers.
func (r *Resolver) Canonicalizer() provision.Canonicalizer { return r.cfg.Canonicalizer }

// NeedsDescendants reports whether Input.Descendants must be filled.
func (r *Resolver) NeedsDescendants() bool { return r.needsDescendants }

// Order returns the definition ids in evaluation order.
func (r *Resolver) Order() []string {
	ids := make([]string, len(r.order))
	for i, d := range r.order {
		ids[i] = d.ID()
	}
	return ids
}

// AttributeMapping returns the mapping of a target attribute, if the attribute is managed.
func (r *Resolver) AttributeMapping(name string) (Mapping, bool) {
	for _, m := range r.cfg.Mappings {
		if m.Attribute != "" && strings.EqualFold(m.Attribute, name) {
			return m, true
		}
	}
	return Mapping{}, false
}

// ManagedReferences returns the names of references the resolver owns, in mapping order.
func (r *Resolver) ManagedReferences() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range r.cfg.Mappings {
		key := strings.ToLower(m.Reference)
		if m.Reference != "" && !seen[key] {
			seen[key] = true
			names = append(names, m.Reference)
		}
	}
	return names
}

// LookupIdentifier returns the identifier an entity maps to, ignoring participation.
// The zero Identifier means the entity cannot exist in the target.
func (r *Resolver) LookupIdentifier(e *provision.SourceEntity) (provision.Identifier, error) {
	li, ok := r.identifier.(lookupIdentifier)
	if !ok {
		return provision.Identifier{}, nil
	}
	id, err := li.LookupID(Input{Entity: e})
	if err != nil {
		return provision.Identifier{}, &provision.ResolutionError{DefinitionID: r.identifier.ID(), Cause: err}
	}
	return r.identify(id), nil
}

// Resolve evaluates the definitions against one entity.
func (r *Resolver) Resolve(in Input) (*Resolution, error) {
	if in.Entity == nil {
		return nil, errors.New("resolve: nil entity")
	}

	memo := make(Values, len(r.order))
	for _, d := range r.order {
		deps := make(Values, len(d.DependsOn()))
		satisfied := true
		for _, dep := range d.DependsOn() {
			if len(memo[dep]) == 0 {
				satisfied = false
				break
			}
			deps[dep] = memo[dep]
		}
		if !satisfied {
			continue
		}
		values, err := d.Resolve(in, deps)
		if err != nil {
			return nil, &provision.ResolutionError{DefinitionID: d.ID(), Cause: err}
		}
		memo[d.ID()] = provision.UniqueValues(values)
	}

	res := &Resolution{}
	lookupID, err := r.LookupIdentifier(in.Entity)
	if err != nil {
		return nil, err
	}
	res.Identifier = lookupID

	ids := memo[r.identifier.ID()]
	switch {
	case len(ids) == 0:
		return res, nil
	case len(ids) > 1:
		return nil, &provision.ResolutionError{
			DefinitionID: r.identifier.ID(),
			Cause:        fmt.Errorf("identifier resolved to %d values", len(ids)),
		}
	}

	id := r.identify(ids[0])
	res.Identifier = id
	po := provision.NewObject(id)
	for _, m := range r.cfg.Mappings {
		values := memo[m.Definition]
		if len(values) == 0 && m.Required {
			return nil, &provision.ResolutionError{
				DefinitionID: m.Definition,
				Cause:        fmt.Errorf("required value for %s%s is missing", m.Attribute, m.Reference),
			}
		}
		switch {
		case m.Attribute != "":
			po.AddValues(m.Attribute, values)
		case m.Lookup != nil:
			for _, v := range values {
				res.Lookups = append(res.Lookups, PendingReference{Name: m.Reference, Value: v, Lookup: *m.Lookup})
			}
		default:
			for _, v := range values {
				po.AddReference(provision.Reference{Name: m.Reference, Target: r.identify(v)}, r.cfg.Canonicalizer)
			}
		}
	}
	res.Object = po
	return res, nil
}

// identify builds an Identifier of this target. DN-shaped object ids are normalized
// and carry their parent as container.
func (r *Resolver) identify(objectID string) provision.Identifier {
	if objectID == "" {
		return provision.Identifier{}
	}
	id := provision.Identifier{TargetID: r.cfg.TargetID, ObjectID: objectID}
	if normalized, err := naming.Normalize(objectID); err == nil {
		id.ObjectID = normalized
		if parent := naming.Parent(normalized); parent != "" {
			id.Container = &provision.Identifier{TargetID: r.cfg.TargetID, ObjectID: parent}
		}
	}
	return id
}

func (r *Resolver) defined(id string) bool {
	for _, d := range r.order {
		if d.ID() == id {
			return true
		}
	}
	return false
}
