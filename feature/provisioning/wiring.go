package provisioning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"provisioner/core/changelog"
	"provisioner/core/config"
	"provisioner/core/provision"
	"provisioner/core/reconcile"
	"provisioner/core/resolver"
	"provisioner/core/storage"
	"provisioner/feature/source"
	"provisioner/feature/target/memory"
	"provisioner/feature/target/objectdir"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Adapter types accepted in definition files.
const (
	AdapterMemory    = "memory"
	AdapterObjectDir = "objectdir"
)

// Definitions is the content of the definitions file: targets with their
// attribute definitions, and the consumer's ancestor rules.
type Definitions struct {
	*resolver.File
	AncestorRules []changelog.AncestorRule
}

// LoadDefinitions reads and validates the definitions file.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions %s: %w", path, err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions parses definitions file content.
func ParseDefinitions(data []byte) (*Definitions, error) {
	file, err := resolver.Parse(data)
	if err != nil {
		return nil, err
	}
	var extra struct {
		AncestorRules []changelog.AncestorRule `yaml:"ancestor_rules"`
	}
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, &provision.ConfigurationError{Reason: "parsing ancestor rules: " + err.Error()}
	}
	return &Definitions{File: file, AncestorRules: extra.AncestorRules}, nil
}

// NeedsStorage reports whether a target or the checkpoint backend keeps its
// data in object storage.
func (d *Definitions) NeedsStorage(cfg changelog.Config) bool {
	if cfg.CheckpointBackend == changelog.BackendStorage {
		return true
	}
	for _, spec := range d.Targets {
		if spec.Adapter.Type == AdapterObjectDir {
			return true
		}
	}
	return false
}

// BuildTargets builds one target per target spec. client may be nil when no
// target uses object storage. timeout applies to targets without their own.
func BuildTargets(defs *resolver.File, client storage.Client, bucket string, timeout time.Duration, logger *zap.Logger) ([]*reconcile.Target, error) {
	targets := make([]*reconcile.Target, 0, len(defs.Targets))
	for _, spec := range defs.Targets {
		r, err := spec.Build()
		if err != nil {
			return nil, err
		}

		var adapter provision.TargetAdapter
		switch spec.Adapter.Type {
		case AdapterMemory, "":
			adapter = memory.New(spec.ID, spec.SearchBase())
		case AdapterObjectDir:
			if client == nil {
				return nil, &provision.ConfigurationError{TargetID: spec.ID, Reason: "objectdir adapter needs object storage"}
			}
			adapter = objectdir.New(client, bucket, spec.Adapter.Prefix, spec.ID, spec.SearchBase(), logger)
		default:
			return nil, &provision.ConfigurationError{TargetID: spec.ID, Reason: fmt.Sprintf("unknown adapter type %q", spec.Adapter.Type)}
		}

		t := &reconcile.Target{Adapter: adapter, Resolver: r, Timeout: timeout, Base: spec.SearchBase()}
		if spec.TimeoutSeconds > 0 {
			t.Timeout = time.Duration(spec.TimeoutSeconds) * time.Second
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// NewCheckpointStore returns the checkpoint store selected by cfg.
func NewCheckpointStore(cfg changelog.Config, db *gorm.DB, client storage.Client, bucket string) (changelog.CheckpointStore, error) {
	switch cfg.CheckpointBackend {
	case changelog.BackendMemory:
		return changelog.NewMemoryStore(), nil
	case changelog.BackendDatabase:
		if db == nil {
			return nil, errors.New("database checkpoint backend needs a database")
		}
		return changelog.NewDBStore(db), nil
	case changelog.BackendStorage:
		if client == nil {
			return nil, errors.New("storage checkpoint backend needs object storage")
		}
		return changelog.NewObjectStore(client, bucket, cfg.CheckpointObject), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.CheckpointBackend)
	}
}

// Runtime is the provisioning system built from the configuration.
type Runtime struct {
	Definitions *Definitions
	Source      *source.Provider
	Engine      *reconcile.Engine
	Consumer    *changelog.Consumer
	Service     *Service
}

// Build wires the source registry, targets, engine and change consumer.
// db is the registry database; client may be nil.
func Build(cfg *config.Config, db *gorm.DB, client storage.Client, logger *zap.Logger) (*Runtime, error) {
	if db == nil {
		return nil, errors.New("the registry database is required")
	}
	defs, err := LoadDefinitions(cfg.Provisioning.DefinitionsFile)
	if err != nil {
		return nil, err
	}
	return BuildFrom(cfg, defs, db, client, logger)
}

// BuildFrom is Build with already loaded definitions.
func BuildFrom(cfg *config.Config, defs *Definitions, db *gorm.DB, client storage.Client, logger *zap.Logger) (*Runtime, error) {
	targets, err := BuildTargets(defs.File, client, cfg.Storage.Bucket, cfg.Provisioning.Timeout(), logger)
	if err != nil {
		return nil, err
	}

	src := source.NewProvider(db, logger)
	engine, err := reconcile.NewEngine(src, cfg.Provisioning.Options(), logger, targets...)
	if err != nil {
		return nil, err
	}

	store, err := NewCheckpointStore(cfg.Changelog, db, client, cfg.Storage.Bucket)
	if err != nil {
		return nil, err
	}
	consumer := changelog.NewConsumer(
		source.NewFeed(db),
		store,
		changelog.NewMapper(src, logger, defs.AncestorRules...),
		engine,
		cfg.Changelog.CheckpointName,
		cfg.Changelog.BatchSize,
		logger,
	)

	return &Runtime{
		Definitions: defs,
		Source:      src,
		Engine:      engine,
		Consumer:    consumer,
		Service:     NewService(engine, consumer, cfg.Provisioning.RootBase, logger),
	}, nil
}
