package changelog

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"provisioner/core/provision"

	"go.uber.org/zap"
)

// ErrSubjectVanished marks an event whose subject no longer exists in the
// source at mapping time. Such events are skipped.
var ErrSubjectVanished = errors.New("subject vanished from source")

// AncestorRule adds the ancestor stems of an event's subject to the affected
// roots. Rules exist for attribute definitions that aggregate data from below,
// such as an organizational unit listing every member of the groups under it.
type AncestorRule struct {
	// Events lists the change kinds the rule applies to.
	Events []provision.ChangeKind `yaml:"events" mapstructure:"events"`
	// Levels limits how many ancestors are added, nearest first. Zero means all.
	Levels int `yaml:"levels" mapstructure:"levels"`
}

func (r AncestorRule) matches(kind provision.ChangeKind) bool {
	return slices.Contains(r.Events, kind)
}

// Mapper translates change events into the root entities they affect.
type Mapper struct {
	source provision.SourceProvider
	rules  []AncestorRule
	logger *zap.Logger
}

// NewMapper creates a mapper reading the source through source.
func NewMapper(source provision.SourceProvider, logger *zap.Logger, rules ...AncestorRule) *Mapper {
	return &Mapper{source: source, rules: rules, logger: logger}
}

// Map returns the affected roots of one event, subject first. A membership
// event whose group is gone returns ErrSubjectVanished; the group's own delete
// event carries the removal.
func (m *Mapper) Map(ctx context.Context, ev provision.ChangeEvent) ([]provision.EntityRef, error) {
	if ev.Subject.Name == "" {
		return nil, fmt.Errorf("event %d has no subject", ev.Sequence)
	}

	var refs []provision.EntityRef
	switch ev.Kind {
	case provision.ChangeMembershipAdd, provision.ChangeMembershipDelete:
		if _, err := m.source.Entity(ctx, ev.Subject); err != nil {
			if provision.IsNotFound(err) {
				return nil, fmt.Errorf("event %d: %s: %w", ev.Sequence, ev.Subject, ErrSubjectVanished)
			}
			return nil, fmt.Errorf("event %d: failed to load %s: %w", ev.Sequence, ev.Subject, err)
		}
		refs = append(refs, ev.Subject)
	case provision.ChangeGroupRename:
		// The old name resolves to a tombstone, so its object is deleted.
		if ev.PreviousName != "" && ev.PreviousName != ev.Subject.Name {
			refs = append(refs, provision.EntityRef{Kind: ev.Subject.Kind, Name: ev.PreviousName})
		}
		refs = append(refs, ev.Subject)
	case provision.ChangeGroupAdd, provision.ChangeGroupUpdate, provision.ChangeGroupDelete,
		provision.ChangeStemAdd, provision.ChangeStemUpdate, provision.ChangeStemDelete:
		refs = append(refs, ev.Subject)
	default:
		return nil, fmt.Errorf("event %d: unknown change kind %q", ev.Sequence, ev.Kind)
	}

	ancestors, err := m.ancestors(ctx, ev)
	if err != nil {
		return nil, err
	}
	return append(refs, ancestors...), nil
}

func (m *Mapper) ancestors(ctx context.Context, ev provision.ChangeEvent) ([]provision.EntityRef, error) {
	levels := -1
	for _, r := range m.rules {
		if !r.matches(ev.Kind) {
			continue
		}
		if r.Levels <= 0 {
			levels = 0
			break
		}
		levels = max(levels, r.Levels)
	}
	if levels < 0 {
		return nil, nil
	}

	all, err := m.source.Ancestors(ctx, ev.Subject)
	if err != nil {
		return nil, fmt.Errorf("event %d: failed to load ancestors of %s: %w", ev.Sequence, ev.Subject, err)
	}
	if levels > 0 && len(all) > levels {
		all = all[:levels]
	}
	m.logger.Debug("Mapped event to ancestors",
		zap.Int64("sequence", ev.Sequence),
		zap.String("subject", ev.Subject.String()),
		zap.Int("ancestors", len(all)),
	)
	return all, nil
}
