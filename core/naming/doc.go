// Package naming turns hierarchical source names into structured target identifiers.
//
// Target object ids are distinguished names (DNs). The package parses and prints DNs,
// produces two normalized forms of them, and implements the naming strategies:
//
//   - Normalize keeps the value case but lowercases attribute types, trims and collapses
//     whitespace, and orders the values of multi-valued RDNs. It is the stored form.
//   - Canonical additionally case-folds and NFC-normalizes values. It is the comparison
//     form: two DNs name the same object when their canonical forms are equal.
//
// # Strategies
//
// Bushy mirrors the whole ancestor chain of the source name below the configured
// source base, one container RDN per ancestor segment:
//
//	edu:courses:fall:courseA  ->  cn=courseA,ou=fall,ou=courses,<target base>
//
// Flat keeps only the last segment:
//
//	edu:courses:fall:courseA  ->  cn=courseA,<target base>
//
// Choosing a strategy changes the object id only, never attribute values.
package naming
