package protocol

import (
	"errors"
	"fmt"

	"provisioner/core/provision"
	"provisioner/core/reconcile"
)

// Error is the wire form of an error with its class.
type Error struct {
	Class   string `json:"class"`
	Message string `json:"message"`
}

// Error classes.
const (
	ClassNotFound          = "not_found"
	ClassConfiguration     = "configuration"
	ClassResolution        = "resolution"
	ClassTargetUnreachable = "target_unreachable"
	ClassAmbiguous         = "ambiguous_result"
	ClassConflict          = "conflict"
	ClassCollision         = "identifier_collision"
	ClassDependencyFailed  = "dependency_failed"
	ClassNotAttempted      = "not_attempted"
	ClassInternal          = "internal"
)

// NewError classifies err. It returns nil for a nil error.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Class: Classify(err), Message: err.Error()}
}

// Classify returns the class of err.
func Classify(err error) string {
	var (
		unreachable *provision.TargetUnreachableError
		ambiguous   *provision.AmbiguousResultError
		conflict    *provision.ConflictError
		collision   *provision.IdentifierCollisionError
		resolution  *provision.ResolutionError
		config      *provision.ConfigurationError
	)
	switch {
	case errors.As(err, &unreachable):
		return ClassTargetUnreachable
	case errors.As(err, &ambiguous):
		return ClassAmbiguous
	case errors.As(err, &conflict):
		return ClassConflict
	case errors.As(err, &collision):
		return ClassCollision
	case errors.As(err, &resolution):
		return ClassResolution
	case errors.As(err, &config), errors.Is(err, &provision.ConfigurationError{}):
		return ClassConfiguration
	case errors.Is(err, provision.ErrDependencyFailed):
		return ClassDependencyFailed
	case errors.Is(err, provision.ErrNotAttempted):
		return ClassNotAttempted
	case errors.Is(err, provision.ErrNotFound):
		return ClassNotFound
	default:
		return ClassInternal
	}
}

// CalcEntry is the desired object of one root in one target.
type CalcEntry struct {
	Source     *provision.EntityRef         `json:"source,omitempty"`
	Identifier provision.Identifier         `json:"identifier"`
	Object     *provision.ProvisionedObject `json:"object,omitempty"`
	Error      *Error                       `json:"error,omitempty"`
}

// DiffEntry is the operation list of one root in one target.
type DiffEntry struct {
	Source     *provision.EntityRef   `json:"source,omitempty"`
	Identifier provision.Identifier   `json:"identifier"`
	InSync     bool                   `json:"in_sync"`
	Operations []provision.MutationOp `json:"operations"`
	Error      *Error                 `json:"error,omitempty"`
}

// SyncEntry is the sync outcome of one root in one target.
type SyncEntry struct {
	Source     *provision.EntityRef   `json:"source,omitempty"`
	Identifier provision.Identifier   `json:"identifier"`
	Status     provision.SyncStatus   `json:"status"`
	AppliedOps []provision.MutationOp `json:"applied_ops"`
	Retryable  bool                   `json:"retryable,omitempty"`
	Errors     []*Error               `json:"errors,omitempty"`
}

// CalcResponse answers a calc request, one entry per target.
type CalcResponse struct {
	RequestID string              `json:"request_id"`
	Entity    provision.EntityRef `json:"entity"`
	Results   []CalcEntry         `json:"results"`
}

// DiffResponse answers a diff request, one entry per target.
type DiffResponse struct {
	RequestID string              `json:"request_id"`
	Entity    provision.EntityRef `json:"entity"`
	Results   []DiffEntry         `json:"results"`
}

// SyncResponse answers a sync request. Status aggregates the targets.
type SyncResponse struct {
	RequestID string               `json:"request_id"`
	Entity    provision.EntityRef  `json:"entity"`
	Status    provision.SyncStatus `json:"status"`
	Results   []SyncEntry          `json:"results"`
}

// BulkCalcResponse answers a bulk calc request. Results are keyed by
// "target:object id", or by "kind:name" of the root when no identifier could
// be resolved.
type BulkCalcResponse struct {
	RequestID string               `json:"request_id"`
	Status    provision.SyncStatus `json:"status"`
	Results   map[string]CalcEntry `json:"results"`
}

// BulkDiffResponse answers a bulk diff request.
type BulkDiffResponse struct {
	RequestID string               `json:"request_id"`
	Status    provision.SyncStatus `json:"status"`
	Results   map[string]DiffEntry `json:"results"`
}

// BulkSyncResponse answers a bulk sync request.
type BulkSyncResponse struct {
	RequestID string               `json:"request_id"`
	Status    provision.SyncStatus `json:"status"`
	Results   map[string]SyncEntry `json:"results"`
}

// NewCalcResponse builds the response of a calc request.
func NewCalcResponse(req *Request, results []provision.CalcResult) *CalcResponse {
	resp := &CalcResponse{RequestID: req.RequestID, Entity: *req.Entity, Results: make([]CalcEntry, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, calcEntry(req.ReturnData, r))
	}
	return resp
}

// NewDiffResponse builds the response of a diff request.
func NewDiffResponse(req *Request, results []provision.DiffResult) *DiffResponse {
	resp := &DiffResponse{RequestID: req.RequestID, Entity: *req.Entity, Results: make([]DiffEntry, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, diffEntry(req.ReturnData, r))
	}
	return resp
}

// NewSyncResponse builds the response of a sync request.
func NewSyncResponse(req *Request, outcomes []provision.SyncOutcome) *SyncResponse {
	resp := &SyncResponse{RequestID: req.RequestID, Entity: *req.Entity, Results: make([]SyncEntry, 0, len(outcomes))}
	statuses := make([]provision.SyncStatus, 0, len(outcomes))
	for _, o := range outcomes {
		resp.Results = append(resp.Results, syncEntry(req.ReturnData, o))
		statuses = append(statuses, o.Status)
	}
	resp.Status = Aggregate(statuses...)
	return resp
}

// NewBulkCalcResponse builds the response of a bulk calc request.
func NewBulkCalcResponse(req *Request, res *reconcile.BulkResult) *BulkCalcResponse {
	resp := &BulkCalcResponse{RequestID: req.RequestID, Status: res.Status, Results: make(map[string]CalcEntry, len(res.Calcs))}
	for _, r := range res.Calcs {
		resp.Results[uniqueKey(resp.Results, r.Source, r.Identifier)] = calcEntry(req.ReturnData, r)
	}
	return resp
}

// NewBulkDiffResponse builds the response of a bulk diff request.
func NewBulkDiffResponse(req *Request, res *reconcile.BulkResult) *BulkDiffResponse {
	resp := &BulkDiffResponse{RequestID: req.RequestID, Status: res.Status, Results: make(map[string]DiffEntry, len(res.Diffs))}
	for _, r := range res.Diffs {
		resp.Results[uniqueKey(resp.Results, r.Source, r.Identifier)] = diffEntry(req.ReturnData, r)
	}
	return resp
}

// NewBulkSyncResponse builds the response of a bulk sync request.
func NewBulkSyncResponse(req *Request, res *reconcile.BulkResult) *BulkSyncResponse {
	resp := &BulkSyncResponse{RequestID: req.RequestID, Status: res.Status, Results: make(map[string]SyncEntry, len(res.Outcomes))}
	for _, o := range res.Outcomes {
		resp.Results[uniqueKey(resp.Results, o.Source, o.Identifier)] = syncEntry(req.ReturnData, o)
	}
	return resp
}

// Key returns the bulk result key of an object: "target:object id", or
// "target:kind:name" of the root when no object id was resolved.
func Key(source provision.EntityRef, id provision.Identifier) string {
	if !id.IsZero() {
		return id.String()
	}
	if id.TargetID == "" {
		return source.String()
	}
	return id.TargetID + ":" + source.String()
}

// uniqueKey returns Key, suffixed with "|kind:name" of the root when another
// result already holds the key, so colliding roots are all listed.
func uniqueKey[V any](results map[string]V, source provision.EntityRef, id provision.Identifier) string {
	key := Key(source, id)
	if _, taken := results[key]; !taken {
		return key
	}
	key += "|" + source.String()
	for n := 2; ; n++ {
		if _, taken := results[key]; !taken {
			return key
		}
		key = fmt.Sprintf("%s|%s#%d", Key(source, id), source.String(), n)
	}
}

// Aggregate folds per-target statuses: success only when all succeeded,
// failed when none did, partial otherwise.
func Aggregate(statuses ...provision.SyncStatus) provision.SyncStatus {
	if len(statuses) == 0 {
		return provision.StatusSuccess
	}
	ok, bad := 0, 0
	for _, s := range statuses {
		switch s {
		case provision.StatusSuccess:
			ok++
		case provision.StatusFailed:
			bad++
		}
	}
	switch {
	case ok == len(statuses):
		return provision.StatusSuccess
	case bad == len(statuses):
		return provision.StatusFailed
	default:
		return provision.StatusPartial
	}
}

func calcEntry(scope ReturnData, r provision.CalcResult) CalcEntry {
	return CalcEntry{
		Source:     source(scope, r.Source),
		Identifier: identifier(scope, r.Identifier),
		Object:     object(scope, r.Object),
		Error:      NewError(r.Err),
	}
}

func diffEntry(scope ReturnData, r provision.DiffResult) DiffEntry {
	return DiffEntry{
		Source:     source(scope, r.Source),
		Identifier: identifier(scope, r.Identifier),
		InSync:     r.InSync(),
		Operations: operations(scope, r.Operations),
		Error:      NewError(r.Err),
	}
}

func syncEntry(scope ReturnData, o provision.SyncOutcome) SyncEntry {
	e := SyncEntry{
		Source:     source(scope, o.Source),
		Identifier: identifier(scope, o.Identifier),
		Status:     o.Status,
		AppliedOps: operations(scope, o.AppliedOps),
		Retryable:  o.Retryable,
	}
	for _, err := range o.Errors {
		e.Errors = append(e.Errors, NewError(err))
	}
	return e
}
