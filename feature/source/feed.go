package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"provisioner/core/provision"

	"gorm.io/gorm"
)

const tokenPrefix = "change_log:"

// Feed serves the change_log table as a change feed.
type Feed struct {
	db *gorm.DB
}

// NewFeed creates a feed on db.
func NewFeed(db *gorm.DB) *Feed {
	return &Feed{db: db}
}

// NextBatch returns up to max entries after the given sequence number.
func (f *Feed) NextBatch(ctx context.Context, after int64, max int) ([]provision.ChangeEvent, error) {
	if max <= 0 {
		return nil, nil
	}
	var entries []ChangeLogEntry
	err := f.db.WithContext(ctx).
		Where("sequence > ?", after).
		Order("sequence").
		Limit(max).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read change log after %d: %w", after, err)
	}

	events := make([]provision.ChangeEvent, len(entries))
	for i, e := range entries {
		events[i] = provision.ChangeEvent{
			Sequence:     e.Sequence,
			Kind:         provision.ChangeKind(e.Kind),
			Subject:      provision.EntityRef{Kind: provision.EntityKind(e.SubjectKind), Name: e.SubjectName},
			Member:       e.Member,
			PreviousName: e.PreviousName,
			Timestamp:    e.CreatedAt,
			Token:        Token(e.Sequence),
		}
	}
	return events, nil
}

// Token returns the resumption token of a sequence number.
func Token(sequence int64) string {
	return tokenPrefix + strconv.FormatInt(sequence, 10)
}

// ParseToken returns the sequence number of a token.
func ParseToken(token string) (int64, error) {
	s, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid change log token %q", token)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid change log token %q: %w", token, err)
	}
	return n, nil
}
