package reconcile

import (
	"context"

	"provisioner/core/provision"
)

// callContext bounds one adapter call by the target timeout.
func (t *Target) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.Timeout)
}

func (t *Target) lookup(ctx context.Context, id provision.Identifier) (*provision.ProvisionedObject, error) {
	ctx, cancel := t.callContext(ctx)
	defer cancel()
	po, err := t.Adapter.Lookup(ctx, id)
	return po, provision.Unreachable(t.ID(), err)
}

func (t *Target) search(ctx context.Context, filter provision.SearchFilter) ([]provision.Identifier, error) {
	ctx, cancel := t.callContext(ctx)
	defer cancel()
	ids, err := t.Adapter.Search(ctx, filter)
	return ids, provision.Unreachable(t.ID(), err)
}

// apply performs the adapter write of one operation. Writes ignore the caller's
// cancellation; only the target timeout bounds them.
func (t *Target) apply(ctx context.Context, op provision.MutationOp) error {
	ctx, cancel := t.callContext(context.WithoutCancel(ctx))
	defer cancel()

	var err error
	switch op.Kind {
	case provision.OpCreate:
		err = t.Adapter.Create(ctx, op.Object)
	case provision.OpModify:
		err = t.Adapter.Modify(ctx, op.Identifier, op.AttributeDeltas, op.ReferenceDeltas)
	case provision.OpDelete:
		err = t.Adapter.Delete(ctx, op.Identifier, op.Recursive)
	default:
		return &provision.ConfigurationError{TargetID: t.ID(), Reason: "unknown operation " + string(op.Kind)}
	}
	return provision.Unreachable(t.ID(), err)
}
