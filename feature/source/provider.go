package source

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"provisioner/core/provision"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Separator splits hierarchical names.
const Separator = ":"

// Provider reads and writes the group registry.
type Provider struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewProvider creates a provider on db.
func NewProvider(db *gorm.DB, logger *zap.Logger) *Provider {
	return &Provider{db: db, logger: logger}
}

// Migrate creates or updates the registry tables.
func (p *Provider) Migrate() error {
	if err := p.db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate registry schema: %w", err)
	}
	return nil
}

// Roots returns stems and groups matching filter, parents before children.
func (p *Provider) Roots(ctx context.Context, filter provision.RootFilter) ([]provision.EntityRef, error) {
	var refs []provision.EntityRef
	if wantsKind(filter, provision.KindStem) {
		var names []string
		if err := p.under(ctx, filter.Under).Model(&Stem{}).Pluck("name", &names).Error; err != nil {
			return nil, fmt.Errorf("failed to list stems: %w", err)
		}
		refs = appendRefs(refs, provision.KindStem, names, filter.Under)
	}
	if wantsKind(filter, provision.KindGroup) {
		var names []string
		if err := p.under(ctx, filter.Under).Model(&Group{}).Pluck("name", &names).Error; err != nil {
			return nil, fmt.Errorf("failed to list groups: %w", err)
		}
		refs = appendRefs(refs, provision.KindGroup, names, filter.Under)
	}
	sortParentsFirst(refs)
	return refs, nil
}

// Entity loads one stem or group.
func (p *Provider) Entity(ctx context.Context, ref provision.EntityRef) (*provision.SourceEntity, error) {
	switch ref.Kind {
	case provision.KindStem:
		var s Stem
		err := p.db.WithContext(ctx).Where("name = ?", ref.Name).First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", ref, provision.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", ref, err)
		}
		return stemEntity(s), nil
	case provision.KindGroup:
		var g Group
		err := p.db.WithContext(ctx).
			Preload("Memberships", func(db *gorm.DB) *gorm.DB { return db.Order("subject_id") }).
			Preload("Attributes", func(db *gorm.DB) *gorm.DB { return db.Order("name, position") }).
			Where("name = ?", ref.Name).First(&g).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", ref, provision.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", ref, err)
		}
		return groupEntity(g), nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", ref.Kind)
	}
}

// Ancestors returns the existing stems above ref, nearest first. The entity
// itself does not need to exist.
func (p *Provider) Ancestors(ctx context.Context, ref provision.EntityRef) ([]provision.EntityRef, error) {
	names := ParentNames(ref.Name)
	if len(names) == 0 {
		return nil, nil
	}
	var found []string
	if err := p.db.WithContext(ctx).Model(&Stem{}).Where("name IN ?", names).Pluck("name", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to load ancestors of %s: %w", ref, err)
	}
	refs := make([]provision.EntityRef, 0, len(found))
	for _, n := range names {
		if slices.Contains(found, n) {
			refs = append(refs, provision.EntityRef{Kind: provision.KindStem, Name: n})
		}
	}
	return refs, nil
}

// Descendants returns every stem and group below a stem, parents first.
// Groups have no descendants.
func (p *Provider) Descendants(ctx context.Context, ref provision.EntityRef) ([]*provision.SourceEntity, error) {
	if ref.Kind != provision.KindStem {
		return nil, nil
	}
	prefix := ref.Name + Separator

	var stems []Stem
	if err := p.db.WithContext(ctx).Where("name LIKE ?", likePrefix(prefix)).Find(&stems).Error; err != nil {
		return nil, fmt.Errorf("failed to load stems below %s: %w", ref, err)
	}
	var groups []Group
	err := p.db.WithContext(ctx).
		Preload("Memberships", func(db *gorm.DB) *gorm.DB { return db.Order("subject_id") }).
		Preload("Attributes", func(db *gorm.DB) *gorm.DB { return db.Order("name, position") }).
		Where("name LIKE ?", likePrefix(prefix)).Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load groups below %s: %w", ref, err)
	}

	out := make([]*provision.SourceEntity, 0, len(stems)+len(groups))
	for _, s := range stems {
		if strings.HasPrefix(s.Name, prefix) {
			out = append(out, stemEntity(s))
		}
	}
	for _, g := range groups {
		if strings.HasPrefix(g.Name, prefix) {
			out = append(out, groupEntity(g))
		}
	}
	slices.SortStableFunc(out, func(a, b *provision.SourceEntity) int {
		return compareRefs(a.Ref(), b.Ref())
	})
	return out, nil
}

func (p *Provider) under(ctx context.Context, under string) *gorm.DB {
	db := p.db.WithContext(ctx)
	if under == "" {
		return db
	}
	return db.Where("name = ? OR name LIKE ?", under, likePrefix(under+Separator))
}

func stemEntity(s Stem) *provision.SourceEntity {
	return &provision.SourceEntity{
		ID:          fmt.Sprintf("stem:%d", s.ID),
		Kind:        provision.KindStem,
		Name:        s.Name,
		DisplayName: s.DisplayName,
		Description: s.Description,
	}
}

func groupEntity(g Group) *provision.SourceEntity {
	e := &provision.SourceEntity{
		ID:          fmt.Sprintf("group:%d", g.ID),
		Kind:        provision.KindGroup,
		Name:        g.Name,
		DisplayName: g.DisplayName,
		Description: g.Description,
	}
	for _, m := range g.Memberships {
		e.Members = append(e.Members, m.SubjectID)
	}
	if len(g.Attributes) > 0 {
		e.Attributes = make(map[string][]string)
		for _, a := range g.Attributes {
			e.Attributes[a.Name] = append(e.Attributes[a.Name], a.Value)
		}
	}
	return e
}

func wantsKind(f provision.RootFilter, k provision.EntityKind) bool {
	return len(f.Kinds) == 0 || slices.Contains(f.Kinds, k)
}

// appendRefs keeps only names at or below under. LIKE treats "_" and "%" in
// names as wildcards, so the query alone can over-match.
func appendRefs(refs []provision.EntityRef, kind provision.EntityKind, names []string, under string) []provision.EntityRef {
	for _, n := range names {
		if under != "" && n != under && !strings.HasPrefix(n, under+Separator) {
			continue
		}
		refs = append(refs, provision.EntityRef{Kind: kind, Name: n})
	}
	return refs
}

func likePrefix(prefix string) string {
	return prefix + "%"
}

// sortParentsFirst orders by depth, stems before groups, then by name.
func sortParentsFirst(refs []provision.EntityRef) {
	slices.SortStableFunc(refs, compareRefs)
}

func compareRefs(a, b provision.EntityRef) int {
	if c := cmp.Compare(Depth(a.Name), Depth(b.Name)); c != 0 {
		return c
	}
	if a.Kind != b.Kind {
		if a.Kind == provision.KindStem {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Name, b.Name)
}

// Depth returns the number of segments of a hierarchical name.
func Depth(name string) int {
	if name == "" {
		return 0
	}
	return strings.Count(name, Separator) + 1
}

// ParentNames returns the names above name, nearest first.
func ParentNames(name string) []string {
	var out []string
	for i := strings.LastIndex(name, Separator); i > 0; i = strings.LastIndex(name, Separator) {
		name = name[:i]
		out = append(out, name)
	}
	return out
}
