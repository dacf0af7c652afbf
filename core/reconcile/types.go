package reconcile

import (
	"fmt"
	"time"

	"provisioner/core/provision"
	"provisioner/core/resolver"
)

// Target bundles everything the engine needs to reconcile one target.
type Target struct {
	// Adapter performs reads and writes against the target.
	Adapter provision.TargetAdapter

	// Resolver produces desired objects for this target.
	Resolver *resolver.Resolver

	// Timeout bounds every adapter call. If zero, calls only observe the caller's context.
	Timeout time.Duration

	// Base is searched for orphaned objects when orphan deletion is enabled.
	Base string
}

// ID returns the target id.
func (t *Target) ID() string {
	return t.Adapter.TargetID()
}

// ErrorPolicy controls how a bulk run reacts to per-object failures.
type ErrorPolicy string

const (
	// ContinueOnError keeps going; only structurally dependent objects are skipped.
	ContinueOnError ErrorPolicy = "continue"
	// AbortOnError stops applying at the first failure.
	AbortOnError ErrorPolicy = "abort"
)

// AmbiguityPolicy controls references whose lookup matches several target objects.
type AmbiguityPolicy string

const (
	// AmbiguityAbort fails the object.
	AmbiguityAbort AmbiguityPolicy = "abort"
	// AmbiguitySkip drops the reference with a warning.
	AmbiguitySkip AmbiguityPolicy = "skip"
)

// Options controls engine behavior.
type Options struct {
	// Workers bounds concurrent per-object work in bulk runs. Size it to the
	// targets' safe connection limits.
	Workers int

	// ErrorPolicy applies to bulk runs. Defaults to ContinueOnError.
	ErrorPolicy ErrorPolicy

	// AmbiguityPolicy applies to reference lookups. Defaults to AmbiguityAbort.
	AmbiguityPolicy AmbiguityPolicy

	// DeleteOrphans makes unfiltered bulk runs delete target objects no root maps to.
	DeleteOrphans bool

	// CacheTTL is the lifetime of a cached reference lookup within one bulk run.
	// If zero, results are only shared between concurrent identical lookups.
	// Single-object calls never cache.
	CacheTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.ErrorPolicy == "" {
		o.ErrorPolicy = ContinueOnError
	}
	if o.AmbiguityPolicy == "" {
		o.AmbiguityPolicy = AmbiguityAbort
	}
	return o
}

func (o Options) validate() error {
	switch o.ErrorPolicy {
	case ContinueOnError, AbortOnError:
	default:
		return fmt.Errorf("unknown error policy %q", o.ErrorPolicy)
	}
	switch o.AmbiguityPolicy {
	case AmbiguityAbort, AmbiguitySkip:
	default:
		return fmt.Errorf("unknown ambiguity policy %q", o.AmbiguityPolicy)
	}
	return nil
}

// ObjectError is a per-object failure of a bulk run.
type ObjectError struct {
	Source     provision.EntityRef  `json:"source"`
	Identifier provision.Identifier `json:"identifier"`
	Err        error                `json:"-"`
}

// Error implements error.
func (e ObjectError) Error() string {
	if e.Identifier.IsZero() {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Source, e.Identifier, e.Err)
}

// Unwrap returns the underlying error.
func (e ObjectError) Unwrap() error { return e.Err }

// BulkResult aggregates a bulk run. Exactly one of Calcs, Diffs and Outcomes is
// filled, depending on the run. Failed objects are always listed.
type BulkResult struct {
	Calcs    []provision.CalcResult  `json:"calcs,omitempty"`
	Diffs    []provision.DiffResult  `json:"diffs,omitempty"`
	Outcomes []provision.SyncOutcome `json:"outcomes,omitempty"`

	// Status is success when every object succeeded, partial when some failed
	// under ContinueOnError, and failed when the run was aborted.
	Status provision.SyncStatus `json:"status"`

	// Errors lists per-object failures in result order.
	Errors []ObjectError `json:"-"`
}
