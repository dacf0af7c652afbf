package reconcile

import "time"

// Config holds configuration for the provisioning engine.
type Config struct {
	// DefinitionsFile is the YAML file with targets and attribute definitions.
	DefinitionsFile string `mapstructure:"definitions_file" default:"definitions.yaml"`
	// Workers bounds concurrent per-object work in bulk runs.
	Workers int `mapstructure:"workers" default:"8"`
	// TimeoutSeconds bounds each target call unless the target sets its own timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// ErrorPolicy is "continue" or "abort".
	ErrorPolicy string `mapstructure:"error_policy" default:"continue"`
	// AmbiguityPolicy is "abort" or "skip".
	AmbiguityPolicy string `mapstructure:"ambiguity_policy" default:"abort"`
	// DeleteOrphans deletes target objects no source root maps to.
	DeleteOrphans bool `mapstructure:"delete_orphans" default:"false"`
	// CacheTTLSeconds is the lifetime of a cached reference lookup within one bulk run.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"60"`
	// RootBase limits bulk runs to source entities under this name. A bulk run
	// narrowed this way is filtered, so it never deletes orphans.
	RootBase string `mapstructure:"root_base" default:""`
}

// Options converts the configuration into engine options.
func (c Config) Options() Options {
	return Options{
		Workers:         c.Workers,
		ErrorPolicy:     ErrorPolicy(c.ErrorPolicy),
		AmbiguityPolicy: AmbiguityPolicy(c.AmbiguityPolicy),
		DeleteOrphans:   c.DeleteOrphans,
		CacheTTL:        time.Duration(c.CacheTTLSeconds) * time.Second,
	}
}

// Timeout returns the default target call timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
