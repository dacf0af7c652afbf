// Package reconcile computes and applies the mutations that make target objects
// match the desired state resolved from the source-of-record.
//
// The reconcile system is built from four stages:
//
// 1. Calc: resolve the desired ProvisionedObject of a source entity for every
//    configured target, including reference lookups against the target.
//
// 2. Diff: read the actual object from the target and compare. The result is at
//    most one MutationOp per object: a Create, a recursive Delete, or a single
//    Modify carrying every attribute and reference delta.
//
// 3. Sync: apply the operation through the target adapter. Writes are not retried
//    and are not interrupted by cancellation once started.
//
// 4. Bulk: run the stages over every root object. Diffs run on a bounded worker
//    pool. Creates and modifies are applied by ascending structural depth, deletes
//    by descending depth, so parents exist before their children and children are
//    gone before their parents.
//
// # Failure model
//
// A lookup that fails or times out leaves the object state unknown: the DiffResult
// carries the error and no operations, it is never treated as absent. Target
// unreachability aborts a bulk run. Under the continue error policy other failures
// only affect their own object and the objects structurally below it.
//
// # Usage Example
//
//	engine, err := reconcile.NewEngine(source, reconcile.Options{Workers: 8}, logger,
//	    &reconcile.Target{Adapter: adapter, Resolver: res, Timeout: 10 * time.Second})
//
//	// Single object
//	diffs, err := engine.Diff(ctx, provision.EntityRef{Kind: provision.KindGroup, Name: "edu:groupA"})
//
//	// Whole graph
//	result, err := engine.BulkSync(ctx, provision.RootFilter{})
package reconcile
