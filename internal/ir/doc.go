// Package ir provides the canonical value representation used for every
// content-addressed identity in canon.
//
// This package has no internal dependencies. Every other package that needs a
// hash goes through MarshalCanonical or ComputeStableHash; nothing hashes a
// non-canonical encoding.
//
// Key design constraints:
//   - Object keys are ordered by UTF-16 code units (RFC 8785), so two values
//     built in a different key order encode identically
//   - Strings are NFC normalized at the serialization boundary
//   - Numbers follow the ECMAScript number-to-string rules; NaN and Inf are rejected
//   - All JSON tags use snake_case
package ir
