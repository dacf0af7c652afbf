package provision

import (
	"context"
	"time"
)

// EntityKind distinguishes the two kinds of source entities.
type EntityKind string

const (
	// KindGroup is a group with members.
	KindGroup EntityKind = "group"
	// KindStem is a folder in the source hierarchy (an organizational unit in most targets).
	KindStem EntityKind = "stem"
)

// EntityRef names a source entity by kind and full hierarchical name.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	Name string     `json:"name"`
}

// String returns "kind:name".
func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.Name
}

// SourceEntity is one entity of the source-of-record, as read at one point in time.
type SourceEntity struct {
	ID          string              `json:"id,omitempty"`
	Kind        EntityKind          `json:"kind"`
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name,omitempty"`
	Description string              `json:"description,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty"`

	// Members lists member subject ids. Only groups have members.
	Members []string `json:"members,omitempty"`

	// Deleted marks a tombstone: the entity no longer exists in the source but
	// its last known name is still needed to find its target object.
	Deleted bool `json:"deleted,omitempty"`
}

// Ref returns the reference of the entity.
func (e *SourceEntity) Ref() EntityRef {
	return EntityRef{Kind: e.Kind, Name: e.Name}
}

// Tombstone returns the entity left behind by a deleted source entity.
func Tombstone(ref EntityRef) *SourceEntity {
	return &SourceEntity{Kind: ref.Kind, Name: ref.Name, Deleted: true}
}

// RootFilter selects the root objects of a bulk run.
type RootFilter struct {
	// Kinds limits the entity kinds. Empty means all kinds.
	Kinds []EntityKind `json:"kinds,omitempty"`

	// Under limits entities to those at or below this hierarchical name. Empty means all.
	Under string `json:"under,omitempty"`
}

// SourceProvider is the read side of the source-of-record.
type SourceProvider interface {
	// Roots returns every entity matching the filter, parents before children.
	Roots(ctx context.Context, filter RootFilter) ([]EntityRef, error)

	// Entity loads one entity. It returns ErrNotFound when the entity does not exist.
	Entity(ctx context.Context, ref EntityRef) (*SourceEntity, error)

	// Ancestors returns the stems above the entity, nearest first.
	Ancestors(ctx context.Context, ref EntityRef) ([]EntityRef, error)

	// Descendants returns every entity below the entity, parents before children.
	Descendants(ctx context.Context, ref EntityRef) ([]*SourceEntity, error)
}

// SearchScope limits how far below the base a search looks.
type SearchScope string

const (
	// ScopeSubtree searches the whole subtree below the base, excluding the base.
	ScopeSubtree SearchScope = "subtree"
	// ScopeOne searches direct children of the base only.
	ScopeOne SearchScope = "one"
)

// SearchFilter selects target objects.
type SearchFilter struct {
	Base  string      `json:"base"`
	Scope SearchScope `json:"scope"`

	// Attribute and Value, when set, keep only objects whose attribute holds the value
	// (compared case-insensitively).
	Attribute string `json:"attribute,omitempty"`
	Value     string `json:"value,omitempty"`
}

// TargetAdapter performs reads and writes against one concrete target.
// Implementations must be safe for concurrent use.
type TargetAdapter interface {
	// TargetID returns the id used in every Identifier of this target.
	TargetID() string

	// Canonical returns the canonical form of an object id of this target.
	Canonical(objectID string) string

	// Lookup returns the actual object, or ErrNotFound.
	Lookup(ctx context.Context, id Identifier) (*ProvisionedObject, error)

	// Search returns the identifiers of matching objects.
	Search(ctx context.Context, filter SearchFilter) ([]Identifier, error)

	// Create stores the object with all its attributes and references.
	Create(ctx context.Context, po *ProvisionedObject) error

	// Modify applies all deltas in one call.
	Modify(ctx context.Context, id Identifier, attrs []AttributeDelta, refs []ReferenceDelta) error

	// Delete removes the object. With recursive set, everything below it goes too.
	// Deleting an absent object is not an error.
	Delete(ctx context.Context, id Identifier, recursive bool) error
}

// ChangeKind classifies a change event.
type ChangeKind string

const (
	ChangeGroupAdd         ChangeKind = "group_add"
	ChangeGroupUpdate      ChangeKind = "group_update"
	ChangeGroupDelete      ChangeKind = "group_delete"
	ChangeGroupRename      ChangeKind = "group_rename"
	ChangeStemAdd          ChangeKind = "stem_add"
	ChangeStemUpdate       ChangeKind = "stem_update"
	ChangeStemDelete       ChangeKind = "stem_delete"
	ChangeMembershipAdd    ChangeKind = "membership_add"
	ChangeMembershipDelete ChangeKind = "membership_delete"
)

// ChangeEvent is an immutable fact about the source graph.
type ChangeEvent struct {
	Sequence int64      `json:"sequence"`
	Kind     ChangeKind `json:"kind"`
	Subject  EntityRef  `json:"subject"`

	// Member is the subject id of a membership event.
	Member string `json:"member,omitempty"`

	// PreviousName is the name before a rename.
	PreviousName string `json:"previous_name,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Token is an opaque resumption token understood by the feed.
	Token string `json:"token,omitempty"`
}

// ChangeFeed is an ordered, resumable feed of change events.
type ChangeFeed interface {
	// NextBatch returns up to max events with a sequence number above after,
	// in ascending sequence order.
	NextBatch(ctx context.Context, after int64, max int) ([]ChangeEvent, error)
}

// Checkpoint is the persisted progress of a change consumer.
type Checkpoint struct {
	Name         string    `json:"name"`
	LastSequence int64     `json:"last_sequence"`
	Token        string    `json:"token,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
