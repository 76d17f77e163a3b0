package version

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/model"
)

// entityObject renders an entity through its wire encoding and returns it
// as an IR object with metadata.version_hash removed.
func entityObject(v any) (ir.IRObject, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode entity")
	}
	val, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode entity")
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return nil, errors.Newf("entity encoded as %T, want object", val)
	}
	if meta, ok := obj["metadata"].(ir.IRObject); ok {
		obj = obj.Without("metadata")
		obj["metadata"] = meta.Without("version_hash")
	}
	return obj, nil
}

func canonicalize(v any) (string, error) {
	obj, err := entityObject(v)
	if err != nil {
		return "", err
	}
	return ir.StableStringify(obj)
}

// CanonicalizeNode returns the canonical encoding of n without its version hash.
func CanonicalizeNode(n model.Node) (string, error) {
	s, err := canonicalize(n)
	if err != nil {
		return "", errors.Wrapf(err, "canonicalize node %s", n.ID)
	}
	return s, nil
}

// ComputeNodeHash returns Hash256(CanonicalizeNode(n)).
func ComputeNodeHash(n model.Node) (string, error) {
	s, err := CanonicalizeNode(n)
	if err != nil {
		return "", err
	}
	return ir.Hash256([]byte(s)), nil
}

// VerifyIntegrity reports whether n's stored version hash matches its content.
// A node that cannot be encoded never verifies.
func VerifyIntegrity(n model.Node) bool {
	if n.Metadata.VersionHash == "" {
		return false
	}
	h, err := ComputeNodeHash(n)
	return err == nil && h == n.Metadata.VersionHash
}

// CanonicalizeEdge returns the canonical encoding of e without its version hash.
func CanonicalizeEdge(e model.Edge) (string, error) {
	s, err := canonicalize(e)
	if err != nil {
		return "", errors.Wrapf(err, "canonicalize edge %s", e.ID)
	}
	return s, nil
}

// ComputeEdgeHash returns Hash256(CanonicalizeEdge(e)).
func ComputeEdgeHash(e model.Edge) (string, error) {
	s, err := CanonicalizeEdge(e)
	if err != nil {
		return "", err
	}
	return ir.Hash256([]byte(s)), nil
}

// VerifyEdgeIntegrity reports whether e's stored version hash matches its content.
func VerifyEdgeIntegrity(e model.Edge) bool {
	if e.Metadata.VersionHash == "" {
		return false
	}
	h, err := ComputeEdgeHash(e)
	return err == nil && h == e.Metadata.VersionHash
}
