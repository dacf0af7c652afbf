package reconcile

import (
	"context"
	"errors"
	"fmt"

	"provisioner/core/provision"
	"provisioner/core/resolver"

	"go.uber.org/zap"
)

// Engine reconciles source entities against every configured target.
// It holds no per-call state and is safe for concurrent use. Reference lookups
// are shared within one bulk run only; single-entity calls always search.
type Engine struct {
	source  provision.SourceProvider
	targets []*Target
	opts    Options
	logger  *zap.Logger
}

// NewEngine returns an engine over the source and targets.
func NewEngine(source provision.SourceProvider, opts Options, logger *zap.Logger, targets ...*Target) (*Engine, error) {
	if source == nil {
		return nil, errors.New("reconcile: source provider is required")
	}
	if len(targets) == 0 {
		return nil, errors.New("reconcile: at least one target is required")
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, &provision.ConfigurationError{Reason: err.Error()}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t == nil || t.Adapter == nil || t.Resolver == nil {
			return nil, &provision.ConfigurationError{Reason: "target needs an adapter and a resolver"}
		}
		if t.Adapter.TargetID() != t.Resolver.TargetID() {
			return nil, &provision.ConfigurationError{
				TargetID: t.ID(),
				Reason:   fmt.Sprintf("resolver is built for target %q", t.Resolver.TargetID()),
			}
		}
		if seen[t.ID()] {
			return nil, &provision.ConfigurationError{TargetID: t.ID(), Reason: "duplicate target"}
		}
		seen[t.ID()] = true
	}

	return &Engine{
		source:  source,
		targets: targets,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Targets returns the configured targets.
func (e *Engine) Targets() []*Target { return e.targets }

// Source returns the source provider.
func (e *Engine) Source() provision.SourceProvider { return e.source }

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Calc returns the desired object of the entity in every target. A vanished entity
// resolves as a tombstone. Per-target failures are attached to the results; the
// returned error reports source failures only.
func (e *Engine) Calc(ctx context.Context, ref provision.EntityRef) ([]provision.CalcResult, error) {
	in, err := e.input(ctx, ref)
	if err != nil {
		return nil, err
	}
	results := make([]provision.CalcResult, 0, len(e.targets))
	for _, t := range e.targets {
		results = append(results, e.calc(ctx, t, in, nil))
	}
	return results, nil
}

// Diff returns the operations needed in every target. It never writes.
func (e *Engine) Diff(ctx context.Context, ref provision.EntityRef) ([]provision.DiffResult, error) {
	in, err := e.input(ctx, ref)
	if err != nil {
		return nil, err
	}
	results := make([]provision.DiffResult, 0, len(e.targets))
	for _, t := range e.targets {
		results = append(results, e.diff(ctx, t, in, nil))
	}
	return results, nil
}

// Sync diffs and applies, target by target.
func (e *Engine) Sync(ctx context.Context, ref provision.EntityRef) ([]provision.SyncOutcome, error) {
	in, err := e.input(ctx, ref)
	if err != nil {
		return nil, err
	}
	outcomes := make([]provision.SyncOutcome, 0, len(e.targets))
	for _, t := range e.targets {
		outcomes = append(outcomes, e.Apply(ctx, t, e.diff(ctx, t, in, nil)))
	}
	return outcomes, nil
}

// input loads the entity, and its descendants when a resolver reads them.
func (e *Engine) input(ctx context.Context, ref provision.EntityRef) (resolver.Input, error) {
	entity, err := e.source.Entity(ctx, ref)
	switch {
	case provision.IsNotFound(err):
		return resolver.Input{Entity: provision.Tombstone(ref)}, nil
	case err != nil:
		return resolver.Input{}, fmt.Errorf("load %s: %w", ref, err)
	}

	in := resolver.Input{Entity: entity}
	for _, t := range e.targets {
		if !t.Resolver.NeedsDescendants() {
			continue
		}
		in.Descendants, err = e.source.Descendants(ctx, ref)
		if err != nil {
			return resolver.Input{}, fmt.Errorf("load descendants of %s: %w", ref, err)
		}
		break
	}
	return in, nil
}

// calc resolves the desired object in one target, including reference lookups.
// lc shares lookups across a bulk run; nil searches every time. The result
// always carries the target id, even when resolution fails.
func (e *Engine) calc(ctx context.Context, t *Target, in resolver.Input, lc *lookupCache) provision.CalcResult {
	result := provision.CalcResult{Source: in.Entity.Ref(), Identifier: provision.Identifier{TargetID: t.ID()}}

	res, err := t.Resolver.Resolve(in)
	if err != nil {
		result.Err = err
		return result
	}
	if !res.Identifier.IsZero() {
		result.Identifier = res.Identifier
	}
	if res.Object == nil {
		return result
	}

	for _, pending := range res.Lookups {
		id, ok, err := e.lookupReference(ctx, t, pending, lc)
		if err != nil {
			result.Err = err
			return result
		}
		if ok {
			res.Object.AddReference(provision.Reference{Name: pending.Name, Target: id}, t.Resolver.Canonicalizer())
		}
	}
	result.Object = res.Object
	return result
}

// lookupReference resolves a reference value through a target search. Exactly one
// match is expected; no match drops the reference.
func (e *Engine) lookupReference(ctx context.Context, t *Target, p resolver.PendingReference, lc *lookupCache) (provision.Identifier, bool, error) {
	scope := p.Lookup.Scope
	if scope == "" {
		scope = provision.ScopeSubtree
	}
	ids, err := lc.search(ctx, t, provision.SearchFilter{
		Base:      p.Lookup.Base,
		Scope:     scope,
		Attribute: p.Lookup.Attribute,
		Value:     p.Value,
	})
	if err != nil {
		return provision.Identifier{}, false, fmt.Errorf("lookup reference %s=%q: %w", p.Name, p.Value, err)
	}

	switch len(ids) {
	case 1:
		return ids[0], true, nil
	case 0:
		e.logger.Warn("Reference lookup found no object",
			zap.String("target", t.ID()),
			zap.String("reference", p.Name),
			zap.String("value", p.Value))
		return provision.Identifier{}, false, nil
	}

	ambiguous := &provision.AmbiguousResultError{Reference: p.Name, Value: p.Value, Matches: ids}
	if e.opts.AmbiguityPolicy == AmbiguitySkip {
		e.logger.Warn("Skipping ambiguous reference",
			zap.String("target", t.ID()),
			zap.Error(ambiguous))
		return provision.Identifier{}, false, nil
	}
	return provision.Identifier{}, false, ambiguous
}

// diff computes the operation for one target.
func (e *Engine) diff(ctx context.Context, t *Target, in resolver.Input, lc *lookupCache) provision.DiffResult {
	calc := e.calc(ctx, t, in, lc)
	result := provision.DiffResult{Source: calc.Source, Identifier: calc.Identifier}
	if calc.Err != nil {
		result.Err = calc.Err
		return result
	}
	if calc.Object == nil && calc.Identifier.ObjectID == "" {
		return result
	}

	actual, err := t.lookup(ctx, calc.Identifier)
	switch {
	case provision.IsNotFound(err):
		actual = nil
	case err != nil:
		result.Err = fmt.Errorf("lookup %s: %w", calc.Identifier, err)
		return result
	}

	if op := Existence(calc.Object, actual, t.Resolver, t.Resolver.Canonicalizer()); op != nil {
		result.Operations = []provision.MutationOp{*op}
	}
	return result
}
