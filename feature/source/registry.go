package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"provisioner/core/provision"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrExists is returned when creating an entity whose name is taken.
var ErrExists = errors.New("entity already exists")

// AddStem creates a stem. Its parent stem must exist.
func (p *Provider) AddStem(ctx context.Context, name, displayName, description string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		if err := p.checkNew(tx, name); err != nil {
			return nil, err
		}
		s := Stem{Name: name, DisplayName: displayName, Description: description}
		if err := tx.Create(&s).Error; err != nil {
			return nil, fmt.Errorf("failed to create stem %s: %w", name, err)
		}
		return change(provision.ChangeStemAdd, provision.KindStem, name), nil
	})
}

// UpdateStem replaces the display name and description of a stem.
func (p *Provider) UpdateStem(ctx context.Context, name, displayName, description string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		res := tx.Model(&Stem{}).Where("name = ?", name).
			Updates(map[string]any{"display_name": displayName, "description": description})
		if err := rowsAffected(res, provision.KindStem, name); err != nil {
			return nil, err
		}
		return change(provision.ChangeStemUpdate, provision.KindStem, name), nil
	})
}

// DeleteStem removes an empty stem.
func (p *Provider) DeleteStem(ctx context.Context, name string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		for _, model := range []any{&Stem{}, &Group{}} {
			var names []string
			if err := tx.Model(model).Where("name LIKE ?", likePrefix(name+Separator)).Pluck("name", &names).Error; err != nil {
				return nil, fmt.Errorf("failed to list children of %s: %w", name, err)
			}
			for _, n := range names {
				if strings.HasPrefix(n, name+Separator) {
					return nil, fmt.Errorf("stem %s is not empty", name)
				}
			}
		}
		res := tx.Where("name = ?", name).Delete(&Stem{})
		if err := rowsAffected(res, provision.KindStem, name); err != nil {
			return nil, err
		}
		return change(provision.ChangeStemDelete, provision.KindStem, name), nil
	})
}

// AddGroup creates a group. Its parent stem must exist.
func (p *Provider) AddGroup(ctx context.Context, name, displayName, description string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		if err := p.checkNew(tx, name); err != nil {
			return nil, err
		}
		g := Group{Name: name, DisplayName: displayName, Description: description}
		if err := tx.Create(&g).Error; err != nil {
			return nil, fmt.Errorf("failed to create group %s: %w", name, err)
		}
		return change(provision.ChangeGroupAdd, provision.KindGroup, name), nil
	})
}

// UpdateGroup replaces the display name and description of a group.
func (p *Provider) UpdateGroup(ctx context.Context, name, displayName, description string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		res := tx.Model(&Group{}).Where("name = ?", name).
			Updates(map[string]any{"display_name": displayName, "description": description})
		if err := rowsAffected(res, provision.KindGroup, name); err != nil {
			return nil, err
		}
		return change(provision.ChangeGroupUpdate, provision.KindGroup, name), nil
	})
}

// RenameGroup moves a group to a new name, possibly under another stem.
func (p *Provider) RenameGroup(ctx context.Context, oldName, newName string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		if err := p.checkNew(tx, newName); err != nil {
			return nil, err
		}
		res := tx.Model(&Group{}).Where("name = ?", oldName).Update("name", newName)
		if err := rowsAffected(res, provision.KindGroup, oldName); err != nil {
			return nil, err
		}
		e := change(provision.ChangeGroupRename, provision.KindGroup, newName)
		e.PreviousName = oldName
		return e, nil
	})
}

// DeleteGroup removes a group with its memberships and attributes.
func (p *Provider) DeleteGroup(ctx context.Context, name string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		g, err := findGroup(tx, name)
		if err != nil {
			return nil, err
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&Membership{}).Error; err != nil {
			return nil, fmt.Errorf("failed to delete memberships of %s: %w", name, err)
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&GroupAttribute{}).Error; err != nil {
			return nil, fmt.Errorf("failed to delete attributes of %s: %w", name, err)
		}
		if err := tx.Delete(&g).Error; err != nil {
			return nil, fmt.Errorf("failed to delete group %s: %w", name, err)
		}
		return change(provision.ChangeGroupDelete, provision.KindGroup, name), nil
	})
}

// AddMember adds a subject to a group. Adding an existing member records no change.
func (p *Provider) AddMember(ctx context.Context, group, subjectID string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		g, err := findGroup(tx, group)
		if err != nil {
			return nil, err
		}
		var n int64
		if err := tx.Model(&Membership{}).Where("group_id = ? AND subject_id = ?", g.ID, subjectID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to check membership: %w", err)
		}
		if n > 0 {
			return nil, nil
		}
		if err := tx.Create(&Membership{GroupID: g.ID, SubjectID: subjectID}).Error; err != nil {
			return nil, fmt.Errorf("failed to add %s to %s: %w", subjectID, group, err)
		}
		e := change(provision.ChangeMembershipAdd, provision.KindGroup, group)
		e.Member = subjectID
		return e, nil
	})
}

// RemoveMember removes a subject from a group. Removing a non-member records no change.
func (p *Provider) RemoveMember(ctx context.Context, group, subjectID string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		g, err := findGroup(tx, group)
		if err != nil {
			return nil, err
		}
		res := tx.Where("group_id = ? AND subject_id = ?", g.ID, subjectID).Delete(&Membership{})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to remove %s from %s: %w", subjectID, group, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, nil
		}
		e := change(provision.ChangeMembershipDelete, provision.KindGroup, group)
		e.Member = subjectID
		return e, nil
	})
}

// SetGroupAttribute replaces the values of a custom attribute. No values
// removes the attribute.
func (p *Provider) SetGroupAttribute(ctx context.Context, group, attribute string, values []string) error {
	return p.write(ctx, func(tx *gorm.DB) (*ChangeLogEntry, error) {
		g, err := findGroup(tx, group)
		if err != nil {
			return nil, err
		}
		if err := tx.Where("group_id = ? AND name = ?", g.ID, attribute).Delete(&GroupAttribute{}).Error; err != nil {
			return nil, fmt.Errorf("failed to clear %s of %s: %w", attribute, group, err)
		}
		values = provision.UniqueValues(values)
		if len(values) > 0 {
			rows := make([]GroupAttribute, len(values))
			for i, v := range values {
				rows[i] = GroupAttribute{GroupID: g.ID, Name: attribute, Value: v, Position: i}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return nil, fmt.Errorf("failed to set %s of %s: %w", attribute, group, err)
			}
		}
		return change(provision.ChangeGroupUpdate, provision.KindGroup, group), nil
	})
}

// write runs fn in a transaction and appends the returned change, if any,
// to the change log before commit.
func (p *Provider) write(ctx context.Context, fn func(tx *gorm.DB) (*ChangeLogEntry, error)) error {
	var recorded *ChangeLogEntry
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := fn(tx)
		if err != nil || entry == nil {
			return err
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append change log: %w", err)
		}
		recorded = entry
		return nil
	})
	if err == nil && recorded != nil {
		p.logger.Debug("Registry change recorded",
			zap.Int64("sequence", recorded.Sequence),
			zap.String("kind", recorded.Kind),
			zap.String("subject", recorded.SubjectName),
		)
	}
	return err
}

// checkNew validates that name is free and its parent stem exists.
func (p *Provider) checkNew(tx *gorm.DB, name string) error {
	if name == "" || strings.HasPrefix(name, Separator) || strings.HasSuffix(name, Separator) || strings.Contains(name, Separator+Separator) {
		return fmt.Errorf("invalid name %q", name)
	}
	for _, model := range []any{&Stem{}, &Group{}} {
		var n int64
		if err := tx.Model(model).Where("name = ?", name).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check name %s: %w", name, err)
		}
		if n > 0 {
			return fmt.Errorf("%s: %w", name, ErrExists)
		}
	}
	parents := ParentNames(name)
	if len(parents) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&Stem{}).Where("name = ?", parents[0]).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check parent of %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("parent stem %s: %w", parents[0], provision.ErrNotFound)
	}
	return nil
}

func findGroup(tx *gorm.DB, name string) (Group, error) {
	var g Group
	err := tx.Where("name = ?", name).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return g, fmt.Errorf("group %s: %w", name, provision.ErrNotFound)
	}
	if err != nil {
		return g, fmt.Errorf("failed to load group %s: %w", name, err)
	}
	return g, nil
}

func rowsAffected(res *gorm.DB, kind provision.EntityKind, name string) error {
	if res.Error != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", kind, name, provision.ErrNotFound)
	}
	return nil
}

func change(kind provision.ChangeKind, subjectKind provision.EntityKind, name string) *ChangeLogEntry {
	return &ChangeLogEntry{Kind: string(kind), SubjectKind: string(subjectKind), SubjectName: name}
}
