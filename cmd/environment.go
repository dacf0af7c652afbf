package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"provisioner/core/config"
	"provisioner/core/database"
	"provisioner/core/logger"
	"provisioner/core/protocol"
	"provisioner/core/storage"
	"provisioner/feature/provisioning"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// environment holds the connections shared by every command.
type environment struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	client storage.Client
}

// loadEnvironment loads the configuration and opens the registry database
// and the object storage client.
func loadEnvironment() (*environment, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to registry database: %w", err)
	}

	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &environment{cfg: cfg, log: l, db: db, client: client}, nil
}

func (e *environment) runtime() (*provisioning.Runtime, error) {
	return provisioning.Build(e.cfg, e.db, e.client, e.log)
}

func (e *environment) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = e.log.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// writeJSON writes a protocol message to the command output.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
