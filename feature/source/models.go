package source

import "time"

// Stem is a folder of the registry hierarchy.
type Stem struct {
	ID          uint      `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name;type:varchar(255);uniqueIndex;not null"`
	DisplayName string    `gorm:"column:display_name;type:varchar(255)"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name.
func (Stem) TableName() string {
	return "stems"
}

// Group is a named set of member subjects.
type Group struct {
	ID          uint             `gorm:"column:id;primaryKey"`
	Name        string           `gorm:"column:name;type:varchar(255);uniqueIndex;not null"`
	DisplayName string           `gorm:"column:display_name;type:varchar(255)"`
	Description string           `gorm:"column:description;type:text"`
	CreatedAt   time.Time        `gorm:"column:created_at"`
	UpdatedAt   time.Time        `gorm:"column:updated_at"`
	Memberships []Membership     `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	Attributes  []GroupAttribute `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name.
func (Group) TableName() string {
	return "groups"
}

// Membership puts one subject into one group.
type Membership struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	GroupID   uint      `gorm:"column:group_id;uniqueIndex:idx_membership;not null"`
	SubjectID string    `gorm:"column:subject_id;type:varchar(255);uniqueIndex:idx_membership;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName overrides the table name.
func (Membership) TableName() string {
	return "memberships"
}

// GroupAttribute is one value of a custom group attribute. Multi-valued
// attributes have one row per value, ordered by Position.
type GroupAttribute struct {
	ID       uint   `gorm:"column:id;primaryKey"`
	GroupID  uint   `gorm:"column:group_id;index;not null"`
	Name     string `gorm:"column:name;type:varchar(191);not null"`
	Value    string `gorm:"column:value;type:text"`
	Position int    `gorm:"column:position"`
}

// TableName overrides the table name.
func (GroupAttribute) TableName() string {
	return "group_attributes"
}

// ChangeLogEntry is one fact of the change feed.
type ChangeLogEntry struct {
	Sequence     int64     `gorm:"column:sequence;primaryKey;autoIncrement"`
	Kind         string    `gorm:"column:kind;type:varchar(32);not null"`
	SubjectKind  string    `gorm:"column:subject_kind;type:varchar(16);not null"`
	SubjectName  string    `gorm:"column:subject_name;type:varchar(255);not null"`
	Member       string    `gorm:"column:member;type:varchar(255)"`
	PreviousName string    `gorm:"column:previous_name;type:varchar(255)"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName overrides the table name.
func (ChangeLogEntry) TableName() string {
	return "change_log"
}

// Models lists every registry model in migration order.
func Models() []any {
	return []any{&Stem{}, &Group{}, &Membership{}, &GroupAttribute{}, &ChangeLogEntry{}}
}
