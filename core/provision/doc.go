// Package provision defines the data model shared by every stage of the
// reconciliation pipeline: identifiers, provisioned objects, mutation operations,
// per-object diff and sync results, change events and the consumer checkpoint.
//
// It also declares the interfaces of the external collaborators the pipeline
// consumes: the source-of-record provider, the change feed, and the target adapters.
//
// # Identity
//
// An Identifier names an object inside one target. Object ids are target specific
// (for directory targets, a distinguished name). Two identifiers are equal when their
// target ids match and their object ids are equal after the target's canonicalization:
//
//	a.Equal(b, adapter) // adapter implements Canonicalizer
//
// # Errors
//
// The error taxonomy lives in errors.go. ErrNotFound is an outcome, not a failure:
// callers use it to decide between Create and Delete. TargetUnreachableError is the
// only error class that aborts a change-consumer batch.
package provision
