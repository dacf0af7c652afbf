package cmd

import (
	"context"
	"errors"
	"fmt"

	"provisioner/core/changelog"
	"provisioner/core/storage"
	"provisioner/feature/provisioning"
	"provisioner/feature/source"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var skipMigrate bool

// bootstrapCmd prepares the registry database and object storage.
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Prepare the registry schema, checkpoint table and storage bucket",
	Long: `Migrates the registry and checkpoint tables, creates the storage bucket when a
target or the checkpoint backend needs it, and prints the schema report.

Examples:
  # Migrate and verify
  bootstrap

  # Only verify an existing schema
  bootstrap --verify-only`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().BoolVar(&skipMigrate, "verify-only", false, "Skip migrations and only verify the schema")
	RootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.close()
	l := env.log

	defs, err := provisioning.LoadDefinitions(env.cfg.Provisioning.DefinitionsFile)
	if err != nil {
		return err
	}

	if !skipMigrate {
		l.Info("Migrating registry tables")
		if err := source.NewProvider(env.db, l).Migrate(); err != nil {
			return fmt.Errorf("failed to migrate registry: %w", err)
		}
		if env.cfg.Changelog.CheckpointBackend == changelog.BackendDatabase {
			l.Info("Migrating checkpoint table")
			if err := changelog.NewDBStore(env.db).Migrate(); err != nil {
				return fmt.Errorf("failed to migrate checkpoints: %w", err)
			}
		}
	}

	if defs.NeedsStorage(env.cfg.Changelog) {
		created, err := storage.EnsureBucket(context.Background(), env.client, env.cfg.Storage.Bucket, env.cfg.Storage.Region)
		if err != nil {
			return err
		}
		l.Info("Storage bucket ready", zap.String("bucket", env.cfg.Storage.Bucket), zap.Bool("created", created))
	}

	report, err := source.VerifySchema(env.db)
	if err != nil {
		return fmt.Errorf("failed to verify schema: %w", err)
	}
	if err := writeJSON(cmd, report); err != nil {
		return err
	}
	if !report.Matched {
		return errors.New("registry schema does not match the models")
	}
	l.Info("Bootstrap complete", zap.Int("targets", len(defs.Targets)))
	return nil
}
