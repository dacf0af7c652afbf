package checks

import (
	"context"
	"fmt"

	"provisioner/core/provision"
	"provisioner/core/storage"
	"provisioner/feature/target/objectdir"

	"go.uber.org/zap"
)

// CheckBucket verifies that the directory bucket exists.
func CheckBucket(ctx context.Context, client storage.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	return nil
}

// CheckDangling returns the dangling entries of every object directory, keyed
// by target id. Targets without dangling entries are left out.
func CheckDangling(ctx context.Context, dirs []*objectdir.Directory) (map[string][]string, error) {
	dangling := make(map[string][]string)
	for _, d := range dirs {
		ids, err := d.Dangling(ctx)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", d.TargetID(), err)
		}
		for _, id := range ids {
			dangling[d.TargetID()] = append(dangling[d.TargetID()], id.ObjectID)
		}
	}
	return dangling, nil
}

// FixDangling deletes dangling entries together with everything below them.
func FixDangling(ctx context.Context, dirs []*objectdir.Directory, dangling map[string][]string, logger *zap.Logger) error {
	for _, d := range dirs {
		for _, dn := range dangling[d.TargetID()] {
			id := provision.Identifier{TargetID: d.TargetID(), ObjectID: dn}
			if err := d.Delete(ctx, id, true); err != nil {
				logger.Error("Failed to remove dangling entry",
					zap.String("target", d.TargetID()),
					zap.String("identifier", dn),
					zap.Error(err),
				)
				return err
			}
			logger.Info("Removed dangling entry", zap.String("target", d.TargetID()), zap.String("identifier", dn))
		}
	}
	return nil
}
