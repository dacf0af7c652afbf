// Package memory provides an in-memory directory target.
//
// The directory keeps objects keyed by canonical DN and enforces the structural
// rules of a real directory: an object can only be created below the base or
// below an existing object, and a non-recursive delete fails while children exist.
// Every call is recorded, which lets tests assert the order of writes.
package memory
