package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/canon/internal/model"
)

// branchFile is the on-disk shape of a branch: nodes plus, optionally, edges.
// A missing edges key means the branch is checked without the oracle.
type branchFile struct {
	Nodes []model.Node `json:"nodes"`
	Edges []model.Edge `json:"edges"`
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return data, errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrapf(err, "read %s", path)
}

// decodeValue parses YAML or JSON (JSON is valid YAML) into a generic value
// whose maps are keyed by string.
func decodeValue(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "parse input")
	}
	if v == nil {
		return nil, errors.New("input is empty")
	}
	return v, nil
}

// decodeInto parses YAML or JSON into dst through the JSON codec, so types
// with custom JSON decoding (node envelopes) decode the same from either.
func decodeInto(data []byte, dst any) error {
	v, err := decodeValue(data)
	if err != nil {
		return err
	}
	js, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "convert input to JSON")
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.DisallowUnknownFields()
	return errors.Wrap(dec.Decode(dst), "decode input")
}

func loadNode(path string, stdin io.Reader) (model.Node, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return model.Node{}, err
	}
	var n model.Node
	if err := decodeInto(data, &n); err != nil {
		return model.Node{}, err
	}
	return n, nil
}

// loadBranch accepts either a branch file or a bare list of nodes.
func loadBranch(path string, stdin io.Reader) (branchFile, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return branchFile{}, err
	}
	v, err := decodeValue(data)
	if err != nil {
		return branchFile{}, err
	}
	var b branchFile
	if _, ok := v.([]any); ok {
		err = decodeInto(data, &b.Nodes)
	} else {
		err = decodeInto(data, &b)
	}
	return b, err
}
