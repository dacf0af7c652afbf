// Package integrity provides health checks of the provisioning system.
//
// # Checks Provided
//
//   - Structure: verifies the directory bucket and lists object directory
//     entries whose parent entry is missing.
//   - Targets: pings every target with a one-level search of its base.
//   - Schema: validates that the registry tables match the source models.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/structure : Runs the structure check (supports ?fix=true).
//   - GET /integrity/targets : Pings targets, 503 when one is unreachable.
//   - GET /integrity/schema : Runs the schema check.
package integrity
