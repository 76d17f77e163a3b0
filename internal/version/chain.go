package version

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/model"
)

// ChainError describes the first broken link in a version history.
type ChainError struct {
	Index  int
	ID     string
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("version chain broken at %d (%s): %s", e.Index, e.ID, e.Reason)
}

// VerifyChain checks a version history ordered oldest first.
//
// Every version must pass VerifyIntegrity and belong to the same entity. The
// first version must have no previous pointer and each later version must
// point at its predecessor's hash. The returned error is a *ChainError for
// the first break.
func VerifyChain(versions []model.Node) error {
	for i, v := range versions {
		if !VerifyIntegrity(v) {
			return &ChainError{Index: i, ID: v.ID, Reason: "version hash does not match content"}
		}
		if i == 0 {
			if v.Metadata.PreviousVersionHash != "" {
				return &ChainError{Index: i, ID: v.ID, Reason: "first version has a previous hash"}
			}
			continue
		}
		prev := versions[i-1]
		if v.ID != prev.ID {
			return &ChainError{Index: i, ID: v.ID, Reason: "entity id changed from " + prev.ID}
		}
		if v.Metadata.PreviousVersionHash != prev.Metadata.VersionHash {
			return &ChainError{Index: i, ID: v.ID, Reason: "previous hash does not match prior version"}
		}
	}
	return nil
}

// IsChainError reports whether err is a *ChainError.
func IsChainError(err error) bool {
	var ce *ChainError
	return errors.As(err, &ce)
}
