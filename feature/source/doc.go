// Package source is the group registry: the source-of-record for stems,
// groups, memberships and group attributes, stored through GORM.
//
// Provider implements provision.SourceProvider for the reconcile engine.
// Registry writes (AddGroup, AddMember, ...) append a row to the change_log
// table in the same transaction as the entity change, and Feed serves those
// rows as a provision.ChangeFeed for the change consumer.
//
// Hierarchical names use ":" as separator. A group "edu:math:staff" lives in
// stem "edu:math", which lives in stem "edu".
package source
