// Package objectdir is a target that stores directory entries as JSON
// objects in an S3-compatible bucket.
//
// Every entry lives at a key derived from its canonical DN, top RDN first:
//
//	<prefix>/dc=edu/ou=math/cn=staff/_entry.json
//
// so a subtree is a key prefix. Search lists prefixes, recursive delete
// lists a prefix and removes everything under it in one batch.
package objectdir
