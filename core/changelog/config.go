package changelog

import "time"

// Config holds configuration for the change log consumer.
type Config struct {
	// Enabled starts the consumer next to the HTTP server.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// BatchSize is the maximum number of events pulled per batch.
	BatchSize int `mapstructure:"batch_size" default:"100"`
	// PollSeconds is the wait between polls when the feed is drained or a batch failed.
	PollSeconds int `mapstructure:"poll_seconds" default:"5"`
	// CheckpointBackend selects where checkpoints are kept (memory, database, storage).
	CheckpointBackend string `mapstructure:"checkpoint_backend" default:"database"`
	// CheckpointName identifies this consumer's checkpoint.
	CheckpointName string `mapstructure:"checkpoint_name" default:"provisioner"`
	// CheckpointObject is the object key used by the storage backend.
	CheckpointObject string `mapstructure:"checkpoint_object" default:"checkpoints/provisioner.json"`
}

// PollInterval returns the configured poll interval.
func (c Config) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PollSeconds) * time.Second
}

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
	BackendStorage  = "storage"
)
