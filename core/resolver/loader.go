package resolver

import (
	"fmt"
	"os"
	"strings"

	"provisioner/core/naming"
	"provisioner/core/provision"

	"gopkg.in/yaml.v3"
)

// Definition kinds accepted in definition files.
const (
	KindSourceName        = "source_name"
	KindSourceAttribute   = "source_attribute"
	KindStatic            = "static"
	KindFilter            = "filter"
	KindMembers           = "members"
	KindDescendantMembers = "descendant_members"
	KindTemplate          = "template"
	KindIdentifier        = "identifier"
)

// File is the content of a definitions file.
type File struct {
	Targets []TargetSpec `yaml:"targets"`
}

// AdapterSpec selects the target adapter implementation.
type AdapterSpec struct {
	// Type is "memory" or "objectdir".
	Type string `yaml:"type"`

	// Prefix is the object key prefix of an objectdir target.
	Prefix string `yaml:"prefix"`
}

// TargetSpec describes one target and its definition set.
type TargetSpec struct {
	ID             string           `yaml:"id"`
	Adapter        AdapterSpec      `yaml:"adapter"`
	Naming         NamingSpec       `yaml:"naming"`
	Identifier     string           `yaml:"identifier"`
	TimeoutSeconds int              `yaml:"timeout_seconds"`
	Definitions    []DefinitionSpec `yaml:"definitions"`
	Mappings       []MappingSpec    `yaml:"mappings"`

	// Base is searched for orphans. Defaults to the naming target base.
	Base string `yaml:"base"`
}

// NamingSpec selects the naming strategy.
type NamingSpec struct {
	Strategy       string `yaml:"strategy"`
	naming.Options `yaml:",inline"`
}

// DefinitionSpec is one definition entry. Only the fields of its kind are read.
type DefinitionSpec struct {
	ID        string   `yaml:"id"`
	Kind      string   `yaml:"kind"`
	DependsOn []string `yaml:"depends_on"`

	Field     string   `yaml:"field"`
	Attribute string   `yaml:"attribute"`
	Values    []string `yaml:"values"`
	Kinds     []string `yaml:"kinds"`
	Prefixes  []string `yaml:"prefixes"`
	Template  string   `yaml:"template"`
	Each      string   `yaml:"each"`
	LeafType  string   `yaml:"leaf_type"`
}

// MappingSpec is one mapping entry.
type MappingSpec struct {
	Definition string  `yaml:"definition"`
	Attribute  string  `yaml:"attribute"`
	Reference  string  `yaml:"reference"`
	Mode       string  `yaml:"mode"`
	Required   bool    `yaml:"required"`
	Force      bool    `yaml:"force"`
	Lookup     *Lookup `yaml:"lookup"`
}

// LoadFile reads and parses a definitions file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("definitions %s: %w", path, err)
	}
	return f, nil
}

// Parse parses definitions file content and checks target ids.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &provision.ConfigurationError{Reason: "parsing definitions: " + err.Error()}
	}
	if len(f.Targets) == 0 {
		return nil, &provision.ConfigurationError{Reason: "at least one target is required"}
	}
	seen := make(map[string]bool)
	for i, t := range f.Targets {
		if t.ID == "" {
			return nil, &provision.ConfigurationError{Reason: fmt.Sprintf("target[%d]: 'id' is required", i)}
		}
		if seen[t.ID] {
			return nil, &provision.ConfigurationError{Reason: fmt.Sprintf("duplicate target %q", t.ID)}
		}
		seen[t.ID] = true
	}
	return &f, nil
}

// Strategy builds the naming strategy of the target.
func (t TargetSpec) Strategy() (naming.Strategy, error) {
	s, err := naming.New(t.Naming.Strategy, t.Naming.Options)
	if err != nil {
		return nil, &provision.ConfigurationError{TargetID: t.ID, Reason: err.Error()}
	}
	return s, nil
}

// SearchBase returns the orphan search base of the target.
func (t TargetSpec) SearchBase() string {
	if t.Base != "" {
		return t.Base
	}
	return t.Naming.TargetBase
}

// Build validates the target's definitions and returns its Resolver.
func (t TargetSpec) Build() (*Resolver, error) {
	strategy, err := t.Strategy()
	if err != nil {
		return nil, err
	}

	defs := make([]Definition, 0, len(t.Definitions))
	for i, spec := range t.Definitions {
		d, err := spec.build(strategy, t.Naming.Separator)
		if err != nil {
			return nil, &provision.ConfigurationError{
				TargetID: t.ID,
				Reason:   fmt.Sprintf("definition[%d] %q: %v", i, spec.ID, err),
			}
		}
		defs = append(defs, d)
	}

	mappings := make([]Mapping, 0, len(t.Mappings))
	for i, spec := range t.Mappings {
		mode, err := provision.ParseAttributeMode(spec.Mode)
		if err != nil {
			return nil, &provision.ConfigurationError{TargetID: t.ID, Reason: fmt.Sprintf("mapping[%d]: %v", i, err)}
		}
		mappings = append(mappings, Mapping{
			Definition: spec.Definition,
			Attribute:  spec.Attribute,
			Reference:  spec.Reference,
			Mode:       mode,
			Required:   spec.Required,
			Force:      spec.Force,
			Lookup:     spec.Lookup,
		})
	}

	return New(Config{
		TargetID:    t.ID,
		Identifier:  t.Identifier,
		Definitions: defs,
		Mappings:    mappings,
	})
}

func (s DefinitionSpec) build(strategy naming.Strategy, separator string) (Definition, error) {
	switch strings.ToLower(s.Kind) {
	case KindSourceName:
		return NewSourceName(s.ID, s.Field, separator, s.DependsOn...)
	case KindSourceAttribute:
		if s.Attribute == "" {
			return nil, fmt.Errorf("'attribute' is required")
		}
		return NewSourceAttribute(s.ID, s.Attribute, s.DependsOn...), nil
	case KindStatic:
		return NewStatic(s.ID, s.Values, s.DependsOn...), nil
	case KindFilter:
		kinds := make([]provision.EntityKind, 0, len(s.Kinds))
		for _, k := range s.Kinds {
			switch provision.EntityKind(k) {
			case provision.KindGroup, provision.KindStem:
				kinds = append(kinds, provision.EntityKind(k))
			default:
				return nil, fmt.Errorf("unknown entity kind %q", k)
			}
		}
		return NewFilter(s.ID, kinds, s.Prefixes, s.DependsOn...), nil
	case KindMembers:
		return NewMembers(s.ID, s.DependsOn...), nil
	case KindDescendantMembers:
		return NewDescendantMembers(s.ID, s.DependsOn...), nil
	case KindTemplate:
		return NewTemplate(s.ID, s.Template, s.Each, s.DependsOn...)
	case KindIdentifier:
		return NewIdentifier(s.ID, strategy, s.LeafType, s.DependsOn...), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", s.Kind)
	}
}
