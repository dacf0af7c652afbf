package changelog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"provisioner/core/provision"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckpointRecord is the table row behind DBStore.
type CheckpointRecord struct {
	Name         string    `gorm:"column:name;type:varchar(191);primaryKey"`
	LastSequence int64     `gorm:"column:last_sequence;not null"`
	Token        string    `gorm:"column:token;type:varchar(255)"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (CheckpointRecord) TableName() string {
	return "consumer_checkpoints"
}

// DBStore keeps checkpoints in the registry database.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a store on db. Call Migrate before first use.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// Migrate creates the checkpoint table when missing.
func (s *DBStore) Migrate() error {
	if err := s.db.AutoMigrate(&CheckpointRecord{}); err != nil {
		return fmt.Errorf("failed to migrate checkpoint table: %w", err)
	}
	return nil
}

func (s *DBStore) Load(ctx context.Context, name string) (provision.Checkpoint, error) {
	var rec CheckpointRecord
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return provision.Checkpoint{Name: name}, nil
	}
	if err != nil {
		return provision.Checkpoint{}, fmt.Errorf("failed to load checkpoint %s: %w", name, err)
	}
	return provision.Checkpoint{
		Name:         rec.Name,
		LastSequence: rec.LastSequence,
		Token:        rec.Token,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

func (s *DBStore) Save(ctx context.Context, cp provision.Checkpoint) error {
	rec := CheckpointRecord{
		Name:         cp.Name,
		LastSequence: cp.LastSequence,
		Token:        cp.Token,
		UpdatedAt:    cp.UpdatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sequence", "token", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", cp.Name, err)
	}
	return nil
}
