package version

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/model"
)

// Factory stamps entities with version metadata.
type Factory struct {
	now func() time.Time
}

// Option configures a Factory.
type Option func(*Factory)

// WithClock sets the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		f.now = now
	}
}

// NewFactory creates a Factory. The default clock is time.Now.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateVersion produces the metadata for a new version of n.
//
// created_at is kept when set, updated_at is always now, absent origin and
// confidence become human and 1.0, and previous_version_hash is set to
// previousHash (empty means n starts a chain). The returned metadata carries
// the hash of n assembled with it.
func (f *Factory) CreateVersion(n model.Node, previousHash string) (model.Metadata, error) {
	meta, err := f.nextMetadata(n.Metadata, previousHash)
	if err != nil {
		return model.Metadata{}, errors.Wrapf(err, "version node %s", n.ID)
	}

	stamped := n.Clone()
	stamped.Metadata = meta
	h, err := ComputeNodeHash(stamped)
	if err != nil {
		return model.Metadata{}, err
	}
	meta.VersionHash = h
	return meta, nil
}

// Stamp returns a copy of n carrying the metadata from CreateVersion.
func (f *Factory) Stamp(n model.Node, previousHash string) (model.Node, error) {
	meta, err := f.CreateVersion(n, previousHash)
	if err != nil {
		return model.Node{}, err
	}
	out := n.Clone()
	out.Metadata = meta
	return out, nil
}

// Revise stamps n as the successor of its current version.
func (f *Factory) Revise(n model.Node) (model.Node, error) {
	return f.Stamp(n, n.Metadata.VersionHash)
}

// CreateEdgeVersion is CreateVersion for edges.
func (f *Factory) CreateEdgeVersion(e model.Edge, previousHash string) (model.Metadata, error) {
	meta, err := f.nextMetadata(e.Metadata, previousHash)
	if err != nil {
		return model.Metadata{}, errors.Wrapf(err, "version edge %s", e.ID)
	}

	stamped := e.Clone()
	stamped.Metadata = meta
	h, err := ComputeEdgeHash(stamped)
	if err != nil {
		return model.Metadata{}, err
	}
	meta.VersionHash = h
	return meta, nil
}

// StampEdge returns a copy of e carrying the metadata from CreateEdgeVersion.
func (f *Factory) StampEdge(e model.Edge, previousHash string) (model.Edge, error) {
	meta, err := f.CreateEdgeVersion(e, previousHash)
	if err != nil {
		return model.Edge{}, err
	}
	out := e.Clone()
	out.Metadata = meta
	return out, nil
}

func (f *Factory) nextMetadata(prev model.Metadata, previousHash string) (model.Metadata, error) {
	if previousHash != "" && !ir.IsHash(previousHash) {
		return model.Metadata{}, errors.Newf("previous hash %q is not a 64-character lowercase hex digest", previousHash)
	}

	now := f.now().UTC()
	meta := prev.Clone()
	meta.VersionHash = ""
	meta.PreviousVersionHash = previousHash
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	if meta.Origin == "" {
		meta.Origin = model.OriginHuman
	}
	if meta.Confidence == nil {
		meta.Confidence = model.Confidence(model.DefaultConfidence)
	}
	return meta, nil
}
