package integrity

import (
	"context"

	"provisioner/core/reconcile"
	"provisioner/core/storage"
	"provisioner/feature/integrity/checks"
	"provisioner/feature/source"
	"provisioner/feature/target/objectdir"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service handles integrity checks.
type Service struct {
	targets []*reconcile.Target
	dirs    []*objectdir.Directory
	client  storage.Client
	bucket  string
	db      *gorm.DB
	logger  *zap.Logger
}

// NewService creates a new integrity service. Object directories are picked
// out of targets; client and db may be nil when not configured.
func NewService(targets []*reconcile.Target, client storage.Client, bucket string, db *gorm.DB, logger *zap.Logger) *Service {
	s := &Service{
		targets: targets,
		client:  client,
		bucket:  bucket,
		db:      db,
		logger:  logger,
	}
	for _, t := range targets {
		if d, ok := t.Adapter.(*objectdir.Directory); ok {
			s.dirs = append(s.dirs, d)
		}
	}
	return s
}

// CheckStructure verifies the bucket and returns dangling entries per target.
func (s *Service) CheckStructure(ctx context.Context) (map[string][]string, error) {
	if len(s.dirs) == 0 {
		return map[string][]string{}, nil
	}
	if s.client != nil {
		if err := checks.CheckBucket(ctx, s.client, s.bucket); err != nil {
			return nil, err
		}
	}
	return checks.CheckDangling(ctx, s.dirs)
}

// FixStructure removes dangling entries.
func (s *Service) FixStructure(ctx context.Context, dangling map[string][]string) error {
	return checks.FixDangling(ctx, s.dirs, dangling, s.logger)
}

// CheckTargets pings every target.
func (s *Service) CheckTargets(ctx context.Context) []checks.TargetReport {
	return checks.CheckTargets(ctx, s.targets)
}

// CheckSchema compares the registry tables with the source models.
func (s *Service) CheckSchema() (*source.SchemaReport, error) {
	return source.VerifySchema(s.db)
}
