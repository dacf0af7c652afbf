package provision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound reports that an object or entity is absent. It is an outcome that
// feeds Create and Delete decisions, never a failure by itself.
var ErrNotFound = errors.New("not found")

// ErrDependencyFailed marks an object skipped because a structural parent
// (or, for deletes, a child) failed in the same run.
var ErrDependencyFailed = errors.New("structural dependency failed")

// ErrNotAttempted marks an object left untouched because the run was aborted or cancelled.
var ErrNotAttempted = errors.New("not attempted")

// ConfigurationError reports an invalid definition set. It is raised at load time only.
type ConfigurationError struct {
	TargetID string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.TargetID == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error in target %s: %s", e.TargetID, e.Reason)
}

// CycleError reports a dependency cycle between attribute definitions.
type CycleError struct {
	TargetID      string
	DefinitionIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("configuration error in target %s: dependency cycle between definitions [%s]",
		e.TargetID, strings.Join(e.DefinitionIDs, " -> "))
}

// Is lets errors.As(&ConfigurationError) style checks treat cycles as configuration errors.
func (e *CycleError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// ResolutionError reports that a definition failed while resolving one entity.
type ResolutionError struct {
	DefinitionID string
	Cause        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.DefinitionID, e.Cause)
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// TargetUnreachableError reports that a target could not be reached, including
// calls that timed out. The state of the object is unknown.
type TargetUnreachableError struct {
	TargetID string
	Cause    error
}

func (e *TargetUnreachableError) Error() string {
	return fmt.Sprintf("target %s unreachable: %v", e.TargetID, e.Cause)
}

func (e *TargetUnreachableError) Unwrap() error { return e.Cause }

// AmbiguousResultError reports a reference that matched several target objects.
type AmbiguousResultError struct {
	Reference string
	Value     string
	Matches   []Identifier
}

func (e *AmbiguousResultError) Error() string {
	ids := make([]string, 0, len(e.Matches))
	for _, m := range e.Matches {
		ids = append(ids, m.ObjectID)
	}
	sort.Strings(ids)
	return fmt.Sprintf("reference %s=%q is ambiguous: %d matches [%s]",
		e.Reference, e.Value, len(e.Matches), strings.Join(ids, "; "))
}

// IdentifierCollisionError reports roots that resolve to the same object in
// one target. None of them is provisioned until the naming is fixed.
type IdentifierCollisionError struct {
	Identifier Identifier
	Sources    []EntityRef
}

func (e *IdentifierCollisionError) Error() string {
	names := make([]string, 0, len(e.Sources))
	for _, s := range e.Sources {
		names = append(names, s.String())
	}
	return fmt.Sprintf("identifier %s is claimed by %d roots [%s]", e.Identifier, len(e.Sources), strings.Join(names, "; "))
}

// ConflictError reports an optimistic precondition failure. Callers may retry.
type ConflictError struct {
	Identifier Identifier
	Cause      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %v", e.Identifier, e.Cause)
}

func (e *ConflictError) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFatal reports whether err leaves the target state unknown for a whole batch.
func IsFatal(err error) bool {
	var unreachable *TargetUnreachableError
	return errors.As(err, &unreachable)
}

// Unreachable wraps timeouts and cancellations of a target call as TargetUnreachableError.
// ErrNotFound and nil pass through unchanged.
func Unreachable(targetID string, err error) error {
	if err == nil || IsNotFound(err) || IsFatal(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TargetUnreachableError{TargetID: targetID, Cause: err}
	}
	return err
}
