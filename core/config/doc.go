// Package config provides configuration management for the provisioner.
//
// Values come from the environment, optionally seeded from a .env file, with
// defaults declared on the section structs through 'default' tags. Nested
// keys map to upper-case variables: provisioning.error_policy is read from
// PROVISIONING_ERROR_POLICY.
//
// # Sections
//   - Server: HTTP port and API key
//   - Log: level and format
//   - Database: registry connection (mysql or sqlite)
//   - Storage: S3/MinIO credentials and bucket
//   - Provisioning: definitions file, workers, timeouts and policies
//   - Changelog: change consumer batch size, polling and checkpoint backend
//
// Attribute definitions and targets are not part of this configuration; they
// are read from the YAML file named by provisioning.definitions_file.
package config
