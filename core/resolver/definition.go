package resolver

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"provisioner/core/naming"
	"provisioner/core/provision"
)

// Values holds resolved values keyed by definition id.
type Values map[string][]string

// First returns the first value of a definition, or "".
func (v Values) First(id string) string {
	if vals := v[id]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Input is what a definition may read.
type Input struct {
	Entity *provision.SourceEntity

	// Descendants is only filled when some definition needs it. See Resolver.NeedsDescendants.
	Descendants []*provision.SourceEntity
}

// Definition is one node of the attribute graph.
type Definition interface {
	ID() string
	DependsOn() []string

	// Resolve computes the values of the definition. deps holds the values of
	// every declared dependency and nothing else.
	Resolve(in Input, deps Values) ([]string, error)
}

// lookupIdentifier is implemented by identifier definitions that can compute the
// object id of an entity regardless of participation. Tombstones and entities
// that stopped participating still need it to find their target object.
type lookupIdentifier interface {
	LookupID(in Input) (string, error)
}

// descendantReader is implemented by definitions that read Input.Descendants.
type descendantReader interface {
	ReadsDescendants() bool
}

type base struct {
	id   string
	deps []string
}

func (b base) ID() string          { return b.id }
func (b base) DependsOn() []string { return b.deps }

// SourceName exposes one naming field of the entity.
type SourceName struct {
	base
	field     string
	separator string
}

// Source name fields.
const (
	FieldName        = "name"
	FieldExtension   = "extension"
	FieldParent      = "parent"
	FieldDisplayName = "display_name"
	FieldDescription = "description"
	FieldID          = "id"
	FieldKind        = "kind"
)

// NewSourceName returns a definition yielding the given field of the entity.
func NewSourceName(id, field, separator string, deps ...string) (*SourceName, error) {
	switch field {
	case "":
		field = FieldName
	case FieldName, FieldExtension, FieldParent, FieldDisplayName, FieldDescription, FieldID, FieldKind:
	default:
		return nil, fmt.Errorf("unknown source name field %q", field)
	}
	if separator == "" {
		separator = ":"
	}
	return &SourceName{base: base{id: id, deps: deps}, field: field, separator: separator}, nil
}

// Resolve implements Definition.
func (d *SourceName) Resolve(in Input, _ Values) ([]string, error) {
	e := in.Entity
	var v string
	switch d.field {
	case FieldName:
		v = e.Name
	case FieldExtension:
		v = e.Name
		if i := strings.LastIndex(e.Name, d.separator); i >= 0 {
			v = e.Name[i+len(d.separator):]
		}
	case FieldParent:
		if i := strings.LastIndex(e.Name, d.separator); i >= 0 {
			v = e.Name[:i]
		}
	case FieldDisplayName:
		v = e.DisplayName
	case FieldDescription:
		v = e.Description
	case FieldID:
		v = e.ID
	case FieldKind:
		v = string(e.Kind)
	}
	if v == "" {
		return nil, nil
	}
	return []string{v}, nil
}

// SourceAttribute yields the values of one source attribute.
type SourceAttribute struct {
	base
	attribute string
}

// NewSourceAttribute returns a definition yielding a source attribute.
func NewSourceAttribute(id, attribute string, deps ...string) *SourceAttribute {
	return &SourceAttribute{base: base{id: id, deps: deps}, attribute: attribute}
}

// Resolve implements Definition. An exact name match wins; otherwise names
// are matched case-insensitively in sorted order.
func (d *SourceAttribute) Resolve(in Input, _ Values) ([]string, error) {
	if values, ok := in.Entity.Attributes[d.attribute]; ok {
		return append([]string(nil), values...), nil
	}
	names := make([]string, 0, len(in.Entity.Attributes))
	for name := range in.Entity.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.EqualFold(name, d.attribute) {
			return append([]string(nil), in.Entity.Attributes[name]...), nil
		}
	}
	return nil, nil
}

// Static yields fixed values.
type Static struct {
	base
	values []string
}

// NewStatic returns a definition yielding values.
func NewStatic(id string, values []string, deps ...string) *Static {
	return &Static{base: base{id: id, deps: deps}, values: values}
}

// Resolve implements Definition.
func (d *Static) Resolve(Input, Values) ([]string, error) {
	return append([]string(nil), d.values...), nil
}

// Filter yields "true" for entities that participate in the target and nothing otherwise.
// Deleted entities never participate.
type Filter struct {
	base
	kinds    []provision.EntityKind
	prefixes []string
}

// NewFilter returns a participation filter. Empty kinds or prefixes match everything.
func NewFilter(id string, kinds []provision.EntityKind, prefixes []string, deps ...string) *Filter {
	return &Filter{base: base{id: id, deps: deps}, kinds: kinds, prefixes: prefixes}
}

// Resolve implements Definition.
func (d *Filter) Resolve(in Input, _ Values) ([]string, error) {
	if d.Matches(in.Entity) {
		return []string{"true"}, nil
	}
	return nil, nil
}

// Matches reports whether the entity passes the filter.
func (d *Filter) Matches(e *provision.SourceEntity) bool {
	if e == nil || e.Deleted {
		return false
	}
	if len(d.kinds) > 0 {
		found := false
		for _, k := range d.kinds {
			if k == e.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(d.prefixes) == 0 {
		return true
	}
	for _, p := range d.prefixes {
		if strings.HasPrefix(e.Name, p) {
			return true
		}
	}
	return false
}

// Members yields the member subject ids of a group.
type Members struct {
	base
}

// NewMembers returns a definition yielding group members.
func NewMembers(id string, deps ...string) *Members {
	return &Members{base: base{id: id, deps: deps}}
}

// Resolve implements Definition.
func (d *Members) Resolve(in Input, _ Values) ([]string, error) {
	return append([]string(nil), in.Entity.Members...), nil
}

// DescendantMembers yields the sorted union of members of all groups below the entity.
type DescendantMembers struct {
	base
}

// NewDescendantMembers returns a definition aggregating members of descendant groups.
func NewDescendantMembers(id string, deps ...string) *DescendantMembers {
	return &DescendantMembers{base: base{id: id, deps: deps}}
}

// ReadsDescendants implements descendantReader.
func (*DescendantMembers) ReadsDescendants() bool { return true }

// Resolve implements Definition.
func (d *DescendantMembers) Resolve(in Input, _ Values) ([]string, error) {
	var all []string
	for _, e := range in.Descendants {
		if e.Kind == provision.KindGroup && !e.Deleted {
			all = append(all, e.Members...)
		}
	}
	all = provision.UniqueValues(all)
	sort.Strings(all)
	return all, nil
}

// Template renders a text/template. With each set, the template is rendered once per
// value of that dependency and {{.Value}} holds the current value.
type Template struct {
	base
	tmpl *template.Template
	each string
}

type templateData struct {
	Entity *provision.SourceEntity
	Value  string
	Values Values
}

var templateFuncs = template.FuncMap{
	"escape": naming.Escape,
	"lower":  strings.ToLower,
	"upper":  strings.ToUpper,
	"join":   strings.Join,
	"first": func(values []string) string {
		if len(values) == 0 {
			return ""
		}
		return values[0]
	},
}

// NewTemplate parses text. each, when set, must be one of deps.
func NewTemplate(id, text, each string, deps ...string) (*Template, error) {
	if each != "" && !contains(deps, each) {
		return nil, fmt.Errorf("template %s iterates %q which is not a dependency", id, each)
	}
	tmpl, err := template.New(id).Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	return &Template{base: base{id: id, deps: deps}, tmpl: tmpl, each: each}, nil
}

// Resolve implements Definition.
func (d *Template) Resolve(in Input, deps Values) ([]string, error) {
	data := templateData{Entity: in.Entity, Values: deps}
	if d.each == "" {
		v, err := d.render(data)
		if err != nil {
			return nil, err
		}
		return []string{v}, nil
	}
	out := make([]string, 0, len(deps[d.each]))
	for _, value := range deps[d.each] {
		data.Value = value
		v, err := d.render(data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *Template) render(data templateData) (string, error) {
	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// IdentifierDef builds the object id of an entity through a naming strategy.
type IdentifierDef struct {
	base
	strategy naming.Strategy
	leafType string
}

// NewIdentifier returns an identifier definition. Groups use leafType as the RDN
// type of their leaf unit, stems use the strategy's container type.
func NewIdentifier(id string, strategy naming.Strategy, leafType string, deps ...string) *IdentifierDef {
	if leafType == "" {
		leafType = "cn"
	}
	return &IdentifierDef{base: base{id: id, deps: deps}, strategy: strategy, leafType: leafType}
}

// Strategy returns the naming strategy.
func (d *IdentifierDef) Strategy() naming.Strategy { return d.strategy }

// Resolve implements Definition.
func (d *IdentifierDef) Resolve(in Input, _ Values) ([]string, error) {
	dn, err := d.LookupID(in)
	if err != nil || dn == "" {
		return nil, err
	}
	return []string{dn}, nil
}

// LookupID implements lookupIdentifier. Names outside the source base have no object id.
func (d *IdentifierDef) LookupID(in Input) (string, error) {
	leaf := d.leafType
	if in.Entity.Kind == provision.KindStem {
		leaf = d.strategy.Options().ContainerType
	}
	dn, err := d.strategy.Build(in.Entity.Name, leaf)
	if errors.Is(err, naming.ErrOutsideBase) {
		return "", nil
	}
	return dn, err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
