package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"provisioner/core/changelog"
	"provisioner/core/database"
	"provisioner/core/logger"
	"provisioner/core/reconcile"
	"provisioner/core/server"
	"provisioner/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage backing object directories.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the registry database.
	Database database.Config `mapstructure:"database"`
	// Provisioning holds configuration for the reconcile engine.
	Provisioning reconcile.Config `mapstructure:"provisioning"`
	// Changelog holds configuration for the change log consumer.
	Changelog changelog.Config `mapstructure:"changelog"`
}

// LoadConfig loads configuration from environment variables and the .env
// file in path. Variables already set in the environment are overridden by .env.
func LoadConfig(path string) (*Config, error) {
	envPath := ".env"
	if path != "." && path != "" {
		envPath = strings.TrimSuffix(path, "/") + "/.env"
	}
	// A missing .env is normal in production.
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")

	// server.api_key <- SERVER_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late, at first use.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	switch reconcile.ErrorPolicy(c.Provisioning.ErrorPolicy) {
	case reconcile.ContinueOnError, reconcile.AbortOnError:
	default:
		errs = append(errs, fmt.Errorf("provisioning.error_policy: unknown policy %q", c.Provisioning.ErrorPolicy))
	}
	switch reconcile.AmbiguityPolicy(c.Provisioning.AmbiguityPolicy) {
	case reconcile.AmbiguityAbort, reconcile.AmbiguitySkip:
	default:
		errs = append(errs, fmt.Errorf("provisioning.ambiguity_policy: unknown policy %q", c.Provisioning.AmbiguityPolicy))
	}
	switch c.Changelog.CheckpointBackend {
	case changelog.BackendMemory, changelog.BackendDatabase, changelog.BackendStorage:
	default:
		errs = append(errs, fmt.Errorf("changelog.checkpoint_backend: unknown backend %q", c.Changelog.CheckpointBackend))
	}
	return errors.Join(errs...)
}

// bindValues registers every leaf key with its 'default' tag value so that
// AutomaticEnv can find it.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		v.SetDefault(key, defaultValue(field))
	}
}

// defaultValue converts the 'default' tag to the field's kind. An empty tag
// still registers the key.
func defaultValue(field reflect.StructField) any {
	raw := field.Tag.Get("default")
	switch field.Type.Kind() {
	case reflect.Bool:
		b, _ := strconv.ParseBool(raw)
		return b
	case reflect.Int, reflect.Int64:
		n, _ := strconv.Atoi(raw)
		return n
	default:
		return raw
	}
}
