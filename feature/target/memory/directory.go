package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"provisioner/core/naming"
	"provisioner/core/provision"
)

// Call records one adapter call.
type Call struct {
	Op       string
	ObjectID string
}

// Directory is an in-memory TargetAdapter. It is safe for concurrent use.
type Directory struct {
	mu          sync.RWMutex
	targetID    string
	base        string
	entries     map[string]*provision.ProvisionedObject
	calls       []Call
	unreachable error
	failures    map[string]error
}

// New returns an empty directory rooted at base.
func New(targetID, base string) *Directory {
	return &Directory{
		targetID: targetID,
		base:     base,
		entries:  make(map[string]*provision.ProvisionedObject),
		failures: make(map[string]error),
	}
}

// TargetID implements provision.TargetAdapter.
func (d *Directory) TargetID() string { return d.targetID }

// Canonical implements provision.TargetAdapter.
func (d *Directory) Canonical(objectID string) string { return naming.Canonical(objectID) }

// Lookup implements provision.TargetAdapter.
func (d *Directory) Lookup(ctx context.Context, id provision.Identifier) (*provision.ProvisionedObject, error) {
	if err := d.begin(ctx, "lookup", id.ObjectID, false); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	po, ok := d.entries[naming.Canonical(id.ObjectID)]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", id.ObjectID, provision.ErrNotFound)
	}
	return po.Clone(), nil
}

// Search implements provision.TargetAdapter. Results are ordered by canonical DN.
func (d *Directory) Search(ctx context.Context, filter provision.SearchFilter) ([]provision.Identifier, error) {
	if err := d.begin(ctx, "search", filter.Base, false); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	baseKey := naming.Canonical(filter.Base)
	var keys []string
	for key, po := range d.entries {
		if filter.Base != "" && !naming.IsDescendantOf(key, baseKey) {
			continue
		}
		if filter.Scope == provision.ScopeOne && naming.Canonical(naming.Parent(key)) != baseKey {
			continue
		}
		if filter.Attribute != "" && !hasValue(po.Attribute(filter.Attribute), filter.Value) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ids := make([]provision.Identifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, d.entries[key].Identifier)
	}
	return ids, nil
}

// Create implements provision.TargetAdapter. Creating an existing object overwrites it.
func (d *Directory) Create(ctx context.Context, po *provision.ProvisionedObject) error {
	if err := d.begin(ctx, "create", po.Identifier.ObjectID, true); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	parent := naming.Parent(po.Identifier.ObjectID)
	if parent != "" && naming.Canonical(parent) != naming.Canonical(d.base) {
		if _, ok := d.entries[naming.Canonical(parent)]; !ok {
			return fmt.Errorf("create %s: parent %s does not exist", po.Identifier.ObjectID, parent)
		}
	}
	d.entries[naming.Canonical(po.Identifier.ObjectID)] = po.Clone()
	return nil
}

// Modify implements provision.TargetAdapter.
func (d *Directory) Modify(ctx context.Context, id provision.Identifier, attrs []provision.AttributeDelta, refs []provision.ReferenceDelta) error {
	if err := d.begin(ctx, "modify", id.ObjectID, true); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	po, ok := d.entries[naming.Canonical(id.ObjectID)]
	if !ok {
		return fmt.Errorf("modify %s: %w", id.ObjectID, provision.ErrNotFound)
	}
	po.Apply(attrs, refs, provision.CanonicalFunc(naming.Canonical))
	return nil
}

// Delete implements provision.TargetAdapter. Deleting an absent object succeeds.
func (d *Directory) Delete(ctx context.Context, id provision.Identifier, recursive bool) error {
	if err := d.begin(ctx, "delete", id.ObjectID, true); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	key := naming.Canonical(id.ObjectID)
	var children []string
	for k := range d.entries {
		if naming.IsDescendantOf(k, key) {
			children = append(children, k)
		}
	}
	if len(children) > 0 && !recursive {
		return fmt.Errorf("delete %s: object has %d descendants", id.ObjectID, len(children))
	}
	for _, k := range children {
		delete(d.entries, k)
	}
	delete(d.entries, key)
	return nil
}

// Seed stores objects directly, without structural checks or call records.
func (d *Directory) Seed(objects ...*provision.ProvisionedObject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, po := range objects {
		d.entries[naming.Canonical(po.Identifier.ObjectID)] = po.Clone()
	}
}

// Get returns a copy of a stored object, or nil.
func (d *Directory) Get(objectID string) *provision.ProvisionedObject {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries[naming.Canonical(objectID)].Clone()
}

// Len returns the number of stored objects.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Calls returns the recorded calls in order.
func (d *Directory) Calls() []Call {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Call(nil), d.calls...)
}

// Writes returns the recorded create, modify and delete calls in order.
func (d *Directory) Writes() []Call {
	var writes []Call
	for _, c := range d.Calls() {
		if c.Op != "lookup" && c.Op != "search" {
			writes = append(writes, c)
		}
	}
	return writes
}

// ResetCalls clears the call record.
func (d *Directory) ResetCalls() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}

// SetUnreachable makes every call fail with a TargetUnreachableError wrapping err.
// A nil err makes the directory reachable again.
func (d *Directory) SetUnreachable(err error) {
	d.mu.Lock()
	d.unreachable = err
	d.mu.Unlock()
}

// FailWrites makes writes to objectID fail with err. A nil err clears the failure.
func (d *Directory) FailWrites(objectID string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, naming.Canonical(objectID))
		return
	}
	d.failures[naming.Canonical(objectID)] = err
}

// begin records the call and returns the injected failure, if any.
func (d *Directory) begin(ctx context.Context, op, objectID string, write bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: op, ObjectID: objectID})
	if d.unreachable != nil {
		return &provision.TargetUnreachableError{TargetID: d.targetID, Cause: d.unreachable}
	}
	if write {
		if err := d.failures[naming.Canonical(objectID)]; err != nil {
			return err
		}
	}
	return nil
}

func hasValue(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
