package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"provisioner/core/provision"

	"github.com/google/uuid"
)

// Kind is the operation a request asks for.
type Kind string

const (
	KindCalc     Kind = "calc"
	KindDiff     Kind = "diff"
	KindSync     Kind = "sync"
	KindBulkCalc Kind = "bulk_calc"
	KindBulkDiff Kind = "bulk_diff"
	KindBulkSync Kind = "bulk_sync"
)

// Bulk reports whether the kind runs over many roots.
func (k Kind) Bulk() bool {
	return k == KindBulkCalc || k == KindBulkDiff || k == KindBulkSync
}

// ReturnData is the amount of object data serialized in a response.
type ReturnData string

const (
	ScopeIdentifier ReturnData = "identifier"
	ScopeData       ReturnData = "data"
	ScopeEverything ReturnData = "everything"
)

// Request is one provisioning request.
type Request struct {
	RequestID  string                `json:"request_id"`
	Kind       Kind                  `json:"kind"`
	Entity     *provision.EntityRef  `json:"entity,omitempty"`
	Filter     *provision.RootFilter `json:"filter,omitempty"`
	ReturnData ReturnData            `json:"return_data,omitempty"`
}

// Normalize fills defaults and validates the request. A missing request id
// is replaced by a random UUID.
func (r *Request) Normalize() error {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	switch r.ReturnData {
	case "":
		r.ReturnData = ScopeData
	case ScopeIdentifier, ScopeData, ScopeEverything:
	default:
		return fmt.Errorf("unknown return data scope %q", r.ReturnData)
	}

	switch r.Kind {
	case KindCalc, KindDiff, KindSync:
		if r.Entity == nil || r.Entity.Name == "" {
			return fmt.Errorf("%s request needs an entity", r.Kind)
		}
		switch r.Entity.Kind {
		case provision.KindGroup, provision.KindStem:
		default:
			return fmt.Errorf("unknown entity kind %q", r.Entity.Kind)
		}
		if r.Filter != nil {
			return fmt.Errorf("%s request takes no filter", r.Kind)
		}
	case KindBulkCalc, KindBulkDiff, KindBulkSync:
		if r.Entity != nil {
			return fmt.Errorf("%s request takes no entity", r.Kind)
		}
		if r.Filter == nil {
			r.Filter = &provision.RootFilter{}
		}
	default:
		return fmt.Errorf("unknown request kind %q", r.Kind)
	}
	return nil
}

// DecodeRequest parses and normalizes a JSON request. Unknown fields are rejected.
func DecodeRequest(data []byte) (*Request, error) {
	r, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := r.Normalize(); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeRequestAs parses a request whose kind is fixed by the caller. A kind
// in the body must match it. An empty body is an empty request.
func DecodeRequestAs(data []byte, kind Kind) (*Request, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	r, err := decode(data)
	if err != nil {
		return nil, err
	}
	if r.Kind != "" && r.Kind != kind {
		return nil, fmt.Errorf("request kind %q does not match %q", r.Kind, kind)
	}
	r.Kind = kind
	if err := r.Normalize(); err != nil {
		return nil, err
	}
	return r, nil
}

func decode(data []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var r Request
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &r, nil
}

// Encode marshals a message as indented JSON with a trailing newline.
func Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
