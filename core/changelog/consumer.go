package changelog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"provisioner/core/provision"

	"go.uber.org/zap"
)

// Reconciler runs calc, diff and sync for one root across every target.
// *reconcile.Engine satisfies it.
type Reconciler interface {
	Sync(ctx context.Context, ref provision.EntityRef) ([]provision.SyncOutcome, error)
}

// BatchState is the lifecycle state of a batch.
type BatchState string

const (
	StateReceived    BatchState = "received"
	StateMapped      BatchState = "mapped"
	StateReconciling BatchState = "reconciling"
	StateCommitted   BatchState = "committed"
	StateFailed      BatchState = "failed"
)

// SkippedEvent is an event dropped during mapping.
type SkippedEvent struct {
	Sequence int64  `json:"sequence"`
	Reason   string `json:"reason"`
}

// RootResult holds the reconcile outcomes of one affected root.
type RootResult struct {
	Ref      provision.EntityRef     `json:"ref"`
	Outcomes []provision.SyncOutcome `json:"outcomes"`
}

// Outcome describes one processed batch.
type Outcome struct {
	State         BatchState           `json:"state"`
	Events        int                  `json:"events"`
	FirstSequence int64                `json:"first_sequence"`
	LastSequence  int64                `json:"last_sequence"`
	Skipped       []SkippedEvent       `json:"skipped,omitempty"`
	Roots         []RootResult         `json:"roots,omitempty"`
	Checkpoint    provision.Checkpoint `json:"checkpoint"`
	Error         string               `json:"error,omitempty"`
}

// Consumer drives incremental reconciliation from a change feed.
// A Consumer must not run concurrently with another Consumer using the same
// checkpoint name.
type Consumer struct {
	feed       provision.ChangeFeed
	store      CheckpointStore
	mapper     *Mapper
	reconciler Reconciler
	name       string
	batchSize  int
	logger     *zap.Logger
	now        func() time.Time
}

// NewConsumer creates a consumer committing under the checkpoint name.
func NewConsumer(feed provision.ChangeFeed, store CheckpointStore, mapper *Mapper, reconciler Reconciler, name string, batchSize int, logger *zap.Logger) *Consumer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Consumer{
		feed:       feed,
		store:      store,
		mapper:     mapper,
		reconciler: reconciler,
		name:       name,
		batchSize:  batchSize,
		logger:     logger,
		now:        time.Now,
	}
}

// Checkpoint returns the last committed checkpoint.
func (c *Consumer) Checkpoint(ctx context.Context) (provision.Checkpoint, error) {
	return c.store.Load(ctx, c.name)
}

// RunOnce pulls and processes one batch. It returns nil when the feed has
// nothing after the checkpoint.
func (c *Consumer) RunOnce(ctx context.Context) (*Outcome, error) {
	cp, err := c.store.Load(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	events, err := c.feed.NextBatch(ctx, cp.LastSequence, c.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch change events after %d: %w", cp.LastSequence, err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return c.ProcessBatch(ctx, events)
}

// Run processes batches until ctx is cancelled. A full batch is followed
// immediately by the next one; an empty or failed batch waits for poll.
func (c *Consumer) Run(ctx context.Context, poll time.Duration) error {
	c.logger.Info("Change consumer started", zap.String("checkpoint", c.name), zap.Duration("poll", poll))
	for {
		out, err := c.RunOnce(ctx)
		if ctx.Err() != nil {
			c.logger.Info("Change consumer stopped", zap.String("checkpoint", c.name))
			return nil
		}
		if err != nil {
			c.logger.Error("Change batch failed, retrying from last checkpoint", zap.Error(err))
		}
		if err == nil && out != nil && out.Events >= c.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Change consumer stopped", zap.String("checkpoint", c.name))
			return nil
		case <-time.After(poll):
		}
	}
}

// ProcessBatch maps, reconciles and commits one batch of events in sequence
// order. Each affected root is reconciled once, after all events are mapped,
// so it reflects the final source state. The checkpoint is saved only after
// every root was reconciled without a fatal error; otherwise the batch fails
// and the returned error is non-nil.
func (c *Consumer) ProcessBatch(ctx context.Context, events []provision.ChangeEvent) (*Outcome, error) {
	out := &Outcome{State: StateReceived, Events: len(events)}
	if len(events) == 0 {
		out.State = StateCommitted
		return out, nil
	}
	out.FirstSequence = events[0].Sequence
	last := events[0]
	for _, ev := range events {
		out.FirstSequence = min(out.FirstSequence, ev.Sequence)
		if ev.Sequence > last.Sequence {
			last = ev
		}
	}
	out.LastSequence = last.Sequence

	l := c.logger.With(
		zap.String("checkpoint", c.name),
		zap.Int64("first_sequence", out.FirstSequence),
		zap.Int64("last_sequence", out.LastSequence),
	)

	current, err := c.store.Load(ctx, c.name)
	if err != nil {
		return c.fail(l, out, fmt.Errorf("failed to load checkpoint: %w", err))
	}
	out.Checkpoint = current

	roots, err := c.mapEvents(ctx, l, events, out)
	if err != nil {
		return c.fail(l, out, err)
	}
	out.State = StateMapped
	l.Debug("Change batch mapped", zap.Int("roots", len(roots)), zap.Int("skipped", len(out.Skipped)))

	out.State = StateReconciling
	for _, ref := range roots {
		if err := ctx.Err(); err != nil {
			return c.fail(l, out, err)
		}
		outcomes, err := c.reconciler.Sync(ctx, ref)
		if err != nil {
			return c.fail(l, out, fmt.Errorf("failed to reconcile %s: %w", ref, err))
		}
		out.Roots = append(out.Roots, RootResult{Ref: ref, Outcomes: outcomes})
		for _, o := range outcomes {
			if o.Status == provision.StatusSuccess {
				continue
			}
			oerr := o.Err()
			if provision.IsFatal(oerr) {
				return c.fail(l, out, fmt.Errorf("reconcile %s on %s: %w", ref, o.Source.String(), oerr))
			}
			l.Warn("Root reconciled with errors",
				zap.String("ref", ref.String()),
				zap.String("target", o.Identifier.TargetID),
				zap.String("identifier", o.Identifier.ObjectID),
				zap.String("status", string(o.Status)),
				zap.Error(oerr),
			)
		}
	}

	// A redelivered batch never moves the checkpoint backwards.
	next := current
	next.Name = c.name
	if last.Sequence >= current.LastSequence {
		next.LastSequence = last.Sequence
		next.Token = last.Token
	}
	next.UpdatedAt = c.now().UTC()
	if err := c.store.Save(ctx, next); err != nil {
		return c.fail(l, out, fmt.Errorf("failed to commit checkpoint: %w", err))
	}
	out.Checkpoint = next
	out.State = StateCommitted
	l.Info("Change batch committed",
		zap.Int("events", out.Events),
		zap.Int("roots", len(out.Roots)),
		zap.Int("skipped", len(out.Skipped)),
	)
	return out, nil
}

// mapEvents returns the affected roots of all events, deduplicated in
// first-seen order.
func (c *Consumer) mapEvents(ctx context.Context, l *zap.Logger, events []provision.ChangeEvent, out *Outcome) ([]provision.EntityRef, error) {
	seen := make(map[provision.EntityRef]struct{})
	var roots []provision.EntityRef
	for _, ev := range events {
		refs, err := c.mapper.Map(ctx, ev)
		if errors.Is(err, ErrSubjectVanished) {
			l.Warn("Skipping change event", zap.Int64("sequence", ev.Sequence), zap.Error(err))
			out.Skipped = append(out.Skipped, SkippedEvent{Sequence: ev.Sequence, Reason: err.Error()})
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			roots = append(roots, ref)
		}
	}
	return roots, nil
}

func (c *Consumer) fail(l *zap.Logger, out *Outcome, err error) (*Outcome, error) {
	out.State = StateFailed
	out.Error = err.Error()
	l.Error("Change batch failed", zap.Error(err))
	return out, err
}
