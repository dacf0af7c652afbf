// Package protocol defines the request and response messages of the
// provisioning API and their JSON encoding.
//
// Every request carries a request id that is echoed in its response. The
// return data scope controls how much of each provisioned object is put on
// the wire:
//
//   - identifier: identifiers and operation kinds only
//   - data: objects with attributes and references (default)
//   - everything: data plus containers and source references
package protocol
