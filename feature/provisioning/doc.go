// Package provisioning exposes the reconcile engine and the change consumer
// over HTTP and wires them from the configuration.
//
// # HTTP Endpoints
//
//   - POST /provisioning : Executes a request; its kind field picks the operation.
//   - POST /provisioning/{calc,diff,sync} : Single-entity operations.
//   - POST /provisioning/bulk/{calc,diff,sync} : Operations over every matching root.
//   - POST /provisioning/changelog/run : Processes one batch of change events.
//   - GET /provisioning/changelog/checkpoint : Returns the committed checkpoint.
//
// Requests and responses use the JSON messages of package protocol. Per-object
// failures are reported inside a 200 response; non-200 answers mean no
// response message could be produced.
//
// # Wiring
//
// Build loads the definitions file named in the configuration, builds one
// target per entry (memory or objectdir adapter), the engine over the registry
// source and a change consumer with the configured checkpoint backend.
package provisioning
