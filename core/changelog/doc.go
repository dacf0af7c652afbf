// Package changelog turns source change events into reconcile runs.
//
// A Consumer pulls batches from a provision.ChangeFeed, maps every event to the
// root entities it affects, reconciles each affected root once through a
// Reconciler and only then commits a checkpoint. A batch that hits a fatal
// error is not committed, so the next run starts from the same sequence again.
//
// Batch lifecycle:
//
//	received -> mapped -> reconciling -> committed
//	                                  \-> failed
//
// Checkpoints live in a CheckpointStore. Three stores are provided: in memory,
// a registry database table (GORM) and a JSON object in the object store.
package changelog
