package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"provisioner/core/naming"
	"provisioner/core/provision"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BulkCalc resolves the desired objects of every root matching filter.
func (e *Engine) BulkCalc(ctx context.Context, filter provision.RootFilter) (*BulkResult, error) {
	refs, err := e.source.Roots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("enumerate roots: %w", err)
	}

	lc := newLookupCache(e.opts.CacheTTL)
	slots := make([][]provision.CalcResult, len(refs))
	attempted := e.forEach(ctx, len(refs), func(i int) {
		in, err := e.input(ctx, refs[i])
		for _, t := range e.targets {
			if err != nil {
				slots[i] = append(slots[i], provision.CalcResult{Source: refs[i], Identifier: provision.Identifier{TargetID: t.ID()}, Err: err})
				continue
			}
			slots[i] = append(slots[i], e.calc(ctx, t, in, lc))
		}
	})

	calcs := []provision.CalcResult{}
	for i, ref := range refs {
		if !attempted[i] {
			for _, t := range e.targets {
				slots[i] = append(slots[i], provision.CalcResult{Source: ref, Identifier: provision.Identifier{TargetID: t.ID()}, Err: provision.ErrNotAttempted})
			}
		}
		calcs = append(calcs, slots[i]...)
	}
	collided := e.collisions(len(calcs), func(i int) (provision.EntityRef, provision.Identifier, error) {
		return calcs[i].Source, calcs[i].Identifier, calcs[i].Err
	})
	for i, err := range collided {
		calcs[i].Err = err
		calcs[i].Object = nil
	}

	result := &BulkResult{Calcs: calcs}
	for _, c := range calcs {
		if c.Err != nil {
			result.Errors = append(result.Errors, ObjectError{Source: c.Source, Identifier: c.Identifier, Err: c.Err})
		}
	}
	result.Status = e.status(ctx, result.Errors, false)
	return result, nil
}

// BulkDiff computes the operations for every root matching filter and, for
// unfiltered runs with orphan deletion enabled, the deletes of orphaned objects.
func (e *Engine) BulkDiff(ctx context.Context, filter provision.RootFilter) (*BulkResult, error) {
	diffs, err := e.bulkDiff(ctx, filter)
	if err != nil {
		return nil, err
	}
	result := &BulkResult{Diffs: diffs}
	for _, d := range diffs {
		if d.Err != nil {
			result.Errors = append(result.Errors, ObjectError{Source: d.Source, Identifier: d.Identifier, Err: d.Err})
		}
	}
	result.Status = e.status(ctx, result.Errors, false)
	return result, nil
}

// BulkSync diffs every root and applies the operations. Creates and modifies run
// level by level from the top of the target hierarchy down, then deletes from the
// bottom up. Objects on one level run concurrently.
func (e *Engine) BulkSync(ctx context.Context, filter provision.RootFilter) (*BulkResult, error) {
	diffs, err := e.bulkDiff(ctx, filter)
	if err != nil {
		return nil, err
	}

	run := &syncRun{
		engine:   e,
		diffs:    diffs,
		outcomes: make([]provision.SyncOutcome, len(diffs)),
		done:     make([]bool, len(diffs)),
		failed:   make(map[string]map[string]bool),
		deletes:  make(map[string][]string),
	}
	run.execute(ctx)

	result := &BulkResult{Outcomes: run.outcomes}
	for _, o := range run.outcomes {
		if o.Status != provision.StatusSuccess {
			result.Errors = append(result.Errors, ObjectError{Source: o.Source, Identifier: o.Identifier, Err: o.Err()})
		}
	}
	result.Status = e.status(ctx, result.Errors, run.aborted)

	e.logger.Info("Bulk sync finished",
		zap.Int("objects", len(diffs)),
		zap.Int("failed", len(result.Errors)),
		zap.String("status", string(result.Status)))
	return result, nil
}

// bulkDiff diffs every root in parallel and appends orphan deletes. Results keep
// root order, then target order.
func (e *Engine) bulkDiff(ctx context.Context, filter provision.RootFilter) ([]provision.DiffResult, error) {
	refs, err := e.source.Roots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("enumerate roots: %w", err)
	}

	lc := newLookupCache(e.opts.CacheTTL)
	slots := make([][]provision.DiffResult, len(refs))
	attempted := e.forEach(ctx, len(refs), func(i int) {
		in, err := e.input(ctx, refs[i])
		for _, t := range e.targets {
			if err != nil {
				slots[i] = append(slots[i], provision.DiffResult{Source: refs[i], Identifier: provision.Identifier{TargetID: t.ID()}, Err: err})
				continue
			}
			slots[i] = append(slots[i], e.diff(ctx, t, in, lc))
		}
	})

	diffs := []provision.DiffResult{}
	for i, ref := range refs {
		if !attempted[i] {
			for _, t := range e.targets {
				slots[i] = append(slots[i], provision.DiffResult{Source: ref, Identifier: provision.Identifier{TargetID: t.ID()}, Err: provision.ErrNotAttempted})
			}
		}
		diffs = append(diffs, slots[i]...)
	}
	collided := e.collisions(len(diffs), func(i int) (provision.EntityRef, provision.Identifier, error) {
		return diffs[i].Source, diffs[i].Identifier, diffs[i].Err
	})
	for i, err := range collided {
		diffs[i].Err = err
		diffs[i].Operations = nil
	}

	if e.opts.DeleteOrphans && isUnfiltered(filter) && ctx.Err() == nil {
		for _, t := range e.targets {
			diffs = append(diffs, e.orphans(ctx, t, diffs)...)
		}
	}
	return diffs, nil
}

// orphans returns recursive deletes for the topmost objects under the target base
// that no diff accounts for. Containers of known objects are never orphans.
func (e *Engine) orphans(ctx context.Context, t *Target, diffs []provision.DiffResult) []provision.DiffResult {
	if t.Base == "" {
		return nil
	}
	c := t.Resolver.Canonicalizer()

	known := make(map[string]bool)
	for _, d := range diffs {
		if d.Identifier.TargetID != t.ID() {
			continue
		}
		if d.Identifier.ObjectID == "" {
			if d.Err != nil {
				e.logger.Warn("Skipping orphan detection, a root could not be resolved",
					zap.String("target", t.ID()),
					zap.String("source", d.Source.String()),
					zap.Error(d.Err))
				return nil
			}
			continue
		}
		known[d.Identifier.Key(c)] = true
		for _, ancestor := range naming.Ancestors(d.Identifier.ObjectID, t.Base) {
			known[provision.Identifier{TargetID: t.ID(), ObjectID: ancestor}.Key(c)] = true
		}
	}

	found, err := t.search(ctx, provision.SearchFilter{Base: t.Base, Scope: provision.ScopeSubtree})
	if err != nil {
		return []provision.DiffResult{{
			Identifier: provision.Identifier{TargetID: t.ID(), ObjectID: t.Base},
			Err:        fmt.Errorf("search orphans: %w", err),
		}}
	}

	orphaned := make(map[string]bool)
	for _, id := range found {
		if !known[id.Key(c)] {
			orphaned[id.Key(c)] = true
		}
	}

	var out []provision.DiffResult
	for _, id := range found {
		if !orphaned[id.Key(c)] || hasOrphanedAncestor(t, id, orphaned, c) {
			continue
		}
		out = append(out, provision.DiffResult{
			Identifier: id,
			Operations: []provision.MutationOp{provision.Delete(id, true)},
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return c.Canonical(out[i].Identifier.ObjectID) < c.Canonical(out[j].Identifier.ObjectID)
	})
	if len(out) > 0 {
		e.logger.Info("Found orphaned objects", zap.String("target", t.ID()), zap.Int("count", len(out)))
	}
	return out
}

func hasOrphanedAncestor(t *Target, id provision.Identifier, orphaned map[string]bool, c provision.Canonicalizer) bool {
	for _, ancestor := range naming.Ancestors(id.ObjectID, t.Base) {
		if orphaned[provision.Identifier{TargetID: t.ID(), ObjectID: ancestor}.Key(c)] {
			return true
		}
	}
	return false
}

// collisions finds roots that resolve to the same object in one target. Each of
// them gets an IdentifierCollisionError, keyed by result index; results that
// already failed are left alone.
func (e *Engine) collisions(n int, at func(i int) (provision.EntityRef, provision.Identifier, error)) map[int]error {
	byKey := make(map[string][]int)
	var keys []string
	for i := 0; i < n; i++ {
		_, id, err := at(i)
		if err != nil || id.IsZero() {
			continue
		}
		t := e.target(id.TargetID)
		if t == nil {
			continue
		}
		k := id.Key(t.Resolver.Canonicalizer())
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], i)
	}

	collided := make(map[int]error)
	for _, k := range keys {
		indexes := byKey[k]
		if len(indexes) < 2 {
			continue
		}
		_, id, _ := at(indexes[0])
		err := &provision.IdentifierCollisionError{Identifier: id}
		for _, i := range indexes {
			src, _, _ := at(i)
			err.Sources = append(err.Sources, src)
		}
		for _, i := range indexes {
			collided[i] = err
		}
		e.logger.Warn("Roots resolve to the same object",
			zap.String("target", id.TargetID),
			zap.String("identifier", id.ObjectID),
			zap.Int("roots", len(indexes)))
	}
	return collided
}

// forEach runs fn for 0..n-1 on the worker pool. Once ctx is done no new work is
// started; work already running completes. It reports which indexes ran.
func (e *Engine) forEach(ctx context.Context, n int, fn func(i int)) []bool {
	attempted := make([]bool, n)
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		attempted[i] = true
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
	return attempted
}

// status derives the overall status of a bulk run.
func (e *Engine) status(ctx context.Context, errs []ObjectError, aborted bool) provision.SyncStatus {
	if aborted || ctx.Err() != nil {
		return provision.StatusFailed
	}
	if len(errs) == 0 {
		return provision.StatusSuccess
	}
	for _, err := range errs {
		if provision.IsFatal(err.Err) {
			return provision.StatusFailed
		}
	}
	if e.opts.ErrorPolicy == AbortOnError {
		return provision.StatusFailed
	}
	return provision.StatusPartial
}

func isUnfiltered(f provision.RootFilter) bool {
	return len(f.Kinds) == 0 && f.Under == ""
}

// syncRun is the state of one BulkSync apply phase.
type syncRun struct {
	engine   *Engine
	diffs    []provision.DiffResult
	outcomes []provision.SyncOutcome
	done     []bool

	mu      sync.Mutex
	aborted bool

	// failed holds, per target, canonical keys of objects whose state is unknown or
	// whose create failed. Creates below them are skipped.
	failed map[string]map[string]bool

	// deletes holds, per target, object ids whose delete failed. Deletes above them are skipped.
	deletes map[string][]string
}

func (r *syncRun) execute(ctx context.Context) {
	e := r.engine

	var creates, deletes []int
	for i, d := range r.diffs {
		switch {
		case d.Err != nil:
			r.finish(i, e.Apply(ctx, nil, d))
			r.markFailed(d.Identifier, provision.OpCreate)
			if provision.IsFatal(d.Err) || e.opts.ErrorPolicy == AbortOnError {
				r.aborted = true
			}
		case len(d.Operations) == 0:
			r.finish(i, e.Apply(ctx, nil, d))
		case d.Operations[0].Kind == provision.OpDelete:
			deletes = append(deletes, i)
		default:
			creates = append(creates, i)
		}
	}

	for _, level := range r.levels(creates, true) {
		r.applyLevel(ctx, level, r.createBlocked)
	}
	for _, level := range r.levels(deletes, false) {
		r.applyLevel(ctx, level, r.deleteBlocked)
	}

	for i := range r.diffs {
		if !r.done[i] {
			r.finish(i, notAttempted(r.diffs[i]))
		}
	}
}

// levels groups diff indexes by structural depth, ascending or descending.
func (r *syncRun) levels(indexes []int, ascending bool) [][]int {
	byDepth := make(map[int][]int)
	var depths []int
	for _, i := range indexes {
		d := naming.Depth(r.diffs[i].Operations[0].Identifier.ObjectID)
		if _, ok := byDepth[d]; !ok {
			depths = append(depths, d)
		}
		byDepth[d] = append(byDepth[d], i)
	}
	sort.Ints(depths)
	if !ascending {
		sort.Sort(sort.Reverse(sort.IntSlice(depths)))
	}
	levels := make([][]int, 0, len(depths))
	for _, d := range depths {
		levels = append(levels, byDepth[d])
	}
	return levels
}

func (r *syncRun) applyLevel(ctx context.Context, level []int, blocked func(provision.DiffResult) bool) {
	e := r.engine
	e.forEach(ctx, len(level), func(n int) {
		i := level[n]
		d := r.diffs[i]
		op := d.Operations[0]

		if r.isAborted() {
			return
		}
		if blocked(d) {
			r.finish(i, provision.SyncOutcome{
				Source:     d.Source,
				Identifier: d.Identifier,
				AppliedOps: []provision.MutationOp{},
				Status:     provision.StatusFailed,
				Errors:     []error{provision.ErrDependencyFailed},
			})
			r.markFailed(op.Identifier, op.Kind)
			return
		}

		outcome := e.Apply(ctx, e.target(d.Identifier.TargetID), d)
		r.finish(i, outcome)
		if outcome.Status == provision.StatusSuccess {
			return
		}
		r.markFailed(op.Identifier, op.Kind)
		if provision.IsFatal(outcome.Err()) || e.opts.ErrorPolicy == AbortOnError {
			r.mu.Lock()
			r.aborted = true
			r.mu.Unlock()
		}
	})
}

func (r *syncRun) createBlocked(d provision.DiffResult) bool {
	op := d.Operations[0]
	if op.Kind != provision.OpCreate {
		return false
	}
	c := r.engine.target(op.Identifier.TargetID).Resolver.Canonicalizer()

	r.mu.Lock()
	defer r.mu.Unlock()
	failed := r.failed[op.Identifier.TargetID]
	for _, ancestor := range naming.Ancestors(op.Identifier.ObjectID, "") {
		if failed[provision.Identifier{TargetID: op.Identifier.TargetID, ObjectID: ancestor}.Key(c)] {
			return true
		}
	}
	return false
}

func (r *syncRun) deleteBlocked(d provision.DiffResult) bool {
	op := d.Operations[0]

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, failed := range r.deletes[op.Identifier.TargetID] {
		if naming.IsDescendantOf(failed, op.Identifier.ObjectID) {
			return true
		}
	}
	return false
}

func (r *syncRun) markFailed(id provision.Identifier, kind provision.OpKind) {
	if id.ObjectID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case provision.OpDelete:
		r.deletes[id.TargetID] = append(r.deletes[id.TargetID], id.ObjectID)
	case provision.OpCreate:
		t := r.engine.target(id.TargetID)
		if t == nil {
			return
		}
		if r.failed[id.TargetID] == nil {
			r.failed[id.TargetID] = make(map[string]bool)
		}
		r.failed[id.TargetID][id.Key(t.Resolver.Canonicalizer())] = true
	}
}

func (r *syncRun) finish(i int, o provision.SyncOutcome) {
	r.mu.Lock()
	r.outcomes[i] = o
	r.done[i] = true
	r.mu.Unlock()
}

func (r *syncRun) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

func notAttempted(d provision.DiffResult) provision.SyncOutcome {
	return provision.SyncOutcome{
		Source:     d.Source,
		Identifier: d.Identifier,
		AppliedOps: []provision.MutationOp{},
		Status:     provision.StatusFailed,
		Errors:     []error{provision.ErrNotAttempted},
	}
}

// target returns the target with the given id, or nil.
func (e *Engine) target(id string) *Target {
	for _, t := range e.targets {
		if t.ID() == id {
			return t
		}
	}
	return nil
}
