// Package version content-addresses nodes and edges.
//
// A version hash is the SHA-256 of the entity's canonical encoding with
// metadata.version_hash removed. Every other field, metadata included,
// contributes to the hash. Factory is the only code that writes version
// hashes; the free functions recompute and compare them.
//
// Versions of one entity form a chain through metadata.previous_version_hash.
// Callers supply the prior hash; nothing here looks up history.
package version
