package store

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/model"
)

// marshalBody converts an entity to canonical JSON TEXT for storage.
func marshalBody(v any) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", errors.Wrap(err, "marshal body")
	}
	return string(data), nil
}

func unmarshalNode(body string) (model.Node, error) {
	var n model.Node
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return model.Node{}, errors.Wrap(err, "unmarshal node")
	}
	return n, nil
}

func unmarshalEdge(body string) (model.Edge, error) {
	var e model.Edge
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return model.Edge{}, errors.Wrap(err, "unmarshal edge")
	}
	return e, nil
}

func unmarshalStatus(body string) (breaker.Status, error) {
	var st breaker.Status
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		return breaker.Status{}, errors.Wrap(err, "unmarshal breaker status")
	}
	return st, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
