package reconcile

import (
	"context"
	"errors"

	"provisioner/core/provision"

	"go.uber.org/zap"
)

// Apply executes the operations of a diff against its target, in order, stopping
// at the first failure. Nothing is retried. A DiffResult carrying an error is not
// applied at all, and t may be nil for diffs without operations.
func (e *Engine) Apply(ctx context.Context, t *Target, d provision.DiffResult) provision.SyncOutcome {
	outcome := provision.SyncOutcome{
		Source:     d.Source,
		Identifier: d.Identifier,
		AppliedOps: []provision.MutationOp{},
		Status:     provision.StatusSuccess,
	}
	if d.Err != nil {
		outcome.Status = provision.StatusFailed
		outcome.Errors = []error{d.Err}
		return outcome
	}

	for _, op := range d.Operations {
		if err := t.apply(ctx, op); err != nil {
			e.logger.Warn("Operation failed",
				zap.String("target", t.ID()),
				zap.String("identifier", op.Identifier.ObjectID),
				zap.String("op", string(op.Kind)),
				zap.Error(err))

			outcome.Errors = append(outcome.Errors, err)
			outcome.Status = provision.StatusFailed
			if len(outcome.AppliedOps) > 0 {
				outcome.Status = provision.StatusPartial
			}
			var conflict *provision.ConflictError
			outcome.Retryable = errors.As(err, &conflict)
			return outcome
		}

		e.logger.Debug("Operation applied",
			zap.String("target", t.ID()),
			zap.String("identifier", op.Identifier.ObjectID),
			zap.String("op", string(op.Kind)))
		outcome.AppliedOps = append(outcome.AppliedOps, op)
	}
	return outcome
}
