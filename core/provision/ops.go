package provision

import (
	"errors"
	"fmt"
)

// OpKind identifies the variant of a MutationOp.
type OpKind string

const (
	// OpCreate creates an object with the desired attributes and references.
	OpCreate OpKind = "create"
	// OpModify applies attribute and reference deltas to an existing object.
	OpModify OpKind = "modify"
	// OpDelete deletes an object, optionally with everything below it.
	OpDelete OpKind = "delete"
)

// AttributeMode controls how differences of one attribute become deltas.
type AttributeMode string

const (
	// ModeReplace sets the attribute to exactly the desired values.
	ModeReplace AttributeMode = "replace"
	// ModeAddOnly adds missing desired values and never removes target values.
	ModeAddOnly AttributeMode = "add_only"
	// ModeRetainAll leaves the attribute to the target unless the value is forced.
	ModeRetainAll AttributeMode = "retain_all"
)

// ParseAttributeMode parses a configured mode. The empty string means replace.
func ParseAttributeMode(s string) (AttributeMode, error) {
	switch AttributeMode(s) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAddOnly, ModeRetainAll:
		return AttributeMode(s), nil
	case "addOnly":
		return ModeAddOnly, nil
	case "retainAll":
		return ModeRetainAll, nil
	default:
		return "", fmt.Errorf("unknown attribute mode %q", s)
	}
}

// AttributeDelta is one attribute change inside a Modify.
type AttributeDelta struct {
	Name   string        `json:"name"`
	Mode   AttributeMode `json:"mode"`
	Values []string      `json:"values"`
}

// ReferenceDelta lists references to add and remove for one reference name.
type ReferenceDelta struct {
	Name   string       `json:"name"`
	Add    []Identifier `json:"add,omitempty"`
	Remove []Identifier `json:"remove,omitempty"`
}

// MutationOp is a tagged variant: Create, Modify or Delete.
// Every variant describes an absolute target state, so applying it twice
// leaves the target as applying it once.
type MutationOp struct {
	Kind       OpKind     `json:"kind"`
	Identifier Identifier `json:"identifier"`

	// Object is the full desired object. Only set for OpCreate.
	Object *ProvisionedObject `json:"object,omitempty"`

	// Recursive deletes the subtree below Identifier. Only meaningful for OpDelete.
	Recursive bool `json:"recursive,omitempty"`

	AttributeDeltas []AttributeDelta `json:"attribute_deltas,omitempty"`
	ReferenceDeltas []ReferenceDelta `json:"reference_deltas,omitempty"`
}

// Create builds an OpCreate for the object.
func Create(po *ProvisionedObject) MutationOp {
	return MutationOp{Kind: OpCreate, Identifier: po.Identifier, Object: po}
}

// Delete builds an OpDelete.
func Delete(id Identifier, recursive bool) MutationOp {
	return MutationOp{Kind: OpDelete, Identifier: id, Recursive: recursive}
}

// Modify builds an OpModify.
func Modify(id Identifier, attrs []AttributeDelta, refs []ReferenceDelta) MutationOp {
	return MutationOp{Kind: OpModify, Identifier: id, AttributeDeltas: attrs, ReferenceDeltas: refs}
}

// CalcResult is the desired representation of one root object in one target.
type CalcResult struct {
	Source     EntityRef          `json:"source"`
	Identifier Identifier         `json:"identifier"`
	Object     *ProvisionedObject `json:"object,omitempty"`
	Err        error              `json:"-"`
}

// DiffResult holds the operations needed to make one target object match its
// desired state. A DiffResult with Err set has no operations: the actual state
// is unknown and nothing may be applied.
type DiffResult struct {
	Source     EntityRef    `json:"source"`
	Identifier Identifier   `json:"identifier"`
	Operations []MutationOp `json:"operations"`
	Err        error        `json:"-"`
}

// InSync reports whether the target already matches the desired state.
func (d DiffResult) InSync() bool {
	return d.Err == nil && len(d.Operations) == 0
}

// SyncStatus is the outcome class of a sync or of a bulk run.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusPartial SyncStatus = "partial"
	StatusFailed  SyncStatus = "failed"
)

// SyncOutcome records what was applied for one root object in one target.
type SyncOutcome struct {
	Source     EntityRef    `json:"source"`
	Identifier Identifier   `json:"identifier"`
	AppliedOps []MutationOp `json:"applied_ops"`
	Status     SyncStatus   `json:"status"`
	Errors     []error      `json:"-"`

	// Retryable is set when the failure is an optimistic-precondition conflict.
	Retryable bool `json:"retryable,omitempty"`
}

// Err joins the recorded errors.
func (o SyncOutcome) Err() error {
	return errors.Join(o.Errors...)
}
