package naming

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutsideBase reports a source name that does not lie below the configured source base.
var ErrOutsideBase = errors.New("name is outside the source base")

const (
	// StrategyBushy is the name of the Bushy strategy.
	StrategyBushy = "bushy"
	// StrategyFlat is the name of the Flat strategy.
	StrategyFlat = "flat"
)

// Options configure how source names map to DNs.
type Options struct {
	// SourceBase is the common prefix stripped from source names, e.g. "edu".
	SourceBase string `yaml:"source_base"`

	// Separator separates segments of a source name. Defaults to ":".
	Separator string `yaml:"separator"`

	// TargetBase is the DN all generated DNs end with.
	TargetBase string `yaml:"target_base"`

	// ContainerType is the RDN type of structural containers. Defaults to "ou".
	ContainerType string `yaml:"container_type"`
}

func (o Options) withDefaults() Options {
	if o.Separator == "" {
		o.Separator = ":"
	}
	if o.ContainerType == "" {
		o.ContainerType = "ou"
	}
	return o
}

// Strategy builds a target DN from a hierarchical source name.
type Strategy interface {
	// Name returns StrategyBushy or StrategyFlat.
	Name() string

	// Segments returns the structural units the DN is built from, outermost first.
	Segments(name string) ([]string, error)

	// Build returns the normalized DN for name. leafType is the RDN type of the
	// leaf unit; the units above it use the container type.
	Build(name, leafType string) (string, error)

	// Options returns the effective options.
	Options() Options
}

// New returns the strategy registered under name.
func New(name string, opts Options) (Strategy, error) {
	opts = opts.withDefaults()
	if opts.TargetBase != "" {
		if _, err := Parse(opts.TargetBase); err != nil {
			return nil, fmt.Errorf("target base: %w", err)
		}
	}
	switch strings.ToLower(name) {
	case StrategyBushy, "":
		return Bushy{opts: opts}, nil
	case StrategyFlat:
		return Flat{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown naming strategy %q", name)
	}
}

// Bushy mirrors the ancestor chain of the source name.
type Bushy struct {
	opts Options
}

// NewBushy returns a Bushy strategy.
func NewBushy(opts Options) Bushy {
	return Bushy{opts: opts.withDefaults()}
}

// Name implements Strategy.
func (Bushy) Name() string { return StrategyBushy }

// Options implements Strategy.
func (b Bushy) Options() Options { return b.opts }

// Segments implements Strategy.
func (b Bushy) Segments(name string) ([]string, error) {
	return relativeSegments(name, b.opts)
}

// Build implements Strategy.
func (b Bushy) Build(name, leafType string) (string, error) {
	segments, err := b.Segments(name)
	if err != nil {
		return "", err
	}
	dn := make(DN, 0, len(segments))
	for i := len(segments) - 1; i >= 0; i-- {
		typ := b.opts.ContainerType
		if i == len(segments)-1 {
			typ = leafType
		}
		dn = append(dn, RDN{{Type: typ, Value: segments[i]}})
	}
	return join(dn, b.opts.TargetBase)
}

// Flat keeps only the leaf segment of the source name.
type Flat struct {
	opts Options
}

// NewFlat returns a Flat strategy.
func NewFlat(opts Options) Flat {
	return Flat{opts: opts.withDefaults()}
}

// Name implements Strategy.
func (Flat) Name() string { return StrategyFlat }

// Options implements Strategy.
func (f Flat) Options() Options { return f.opts }

// Segments implements Strategy.
func (f Flat) Segments(name string) ([]string, error) {
	segments, err := relativeSegments(name, f.opts)
	if err != nil {
		return nil, err
	}
	return segments[len(segments)-1:], nil
}

// Build implements Strategy.
func (f Flat) Build(name, leafType string) (string, error) {
	segments, err := f.Segments(name)
	if err != nil {
		return "", err
	}
	return join(DN{{{Type: leafType, Value: segments[0]}}}, f.opts.TargetBase)
}

// relativeSegments splits name and strips the source base. The result is never empty.
func relativeSegments(name string, opts Options) ([]string, error) {
	rel := name
	if opts.SourceBase != "" {
		prefix := opts.SourceBase + opts.Separator
		if !strings.HasPrefix(name, prefix) {
			return nil, fmt.Errorf("%w: %q not below %q", ErrOutsideBase, name, opts.SourceBase)
		}
		rel = strings.TrimPrefix(name, prefix)
	}
	var segments []string
	for _, s := range strings.Split(rel, opts.Separator) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q has no segments", ErrOutsideBase, name)
	}
	return segments, nil
}

func join(dn DN, base string) (string, error) {
	b, err := Parse(base)
	if err != nil {
		return "", err
	}
	return append(dn, b...).normalized(false).String(), nil
}
