package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/version"
)

// PutNode stores n as the new head of its chain.
//
// n must be valid, must verify against its own version hash, and its
// previous_version_hash must equal the stored head's hash (empty for a new
// node); otherwise ErrConflict. Writing the stored head again is a no-op.
func (s *Store) PutNode(ctx context.Context, n model.Node) (err error) {
	defer func() { s.metrics.RecordStoreOp("put_node", err) }()

	if err := model.ValidateNode(n); err != nil {
		return errors.Wrap(err, "put node")
	}
	if !version.VerifyIntegrity(n) {
		return errors.WithHint(
			errors.Newf("put node %s: content does not match version hash %q", n.ID, n.Metadata.VersionHash),
			"stamp the node before storing it",
		)
	}
	body, err := marshalBody(n)
	if err != nil {
		return errors.Wrapf(err, "put node %s", n.ID)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeNode(ctx, tx, n, body)
	})
}

// PutEdge stores e as the new head of its chain, with the same rules as
// PutNode. Both endpoints must already be stored (ErrNotFound otherwise).
func (s *Store) PutEdge(ctx context.Context, e model.Edge) (err error) {
	defer func() { s.metrics.RecordStoreOp("put_edge", err) }()

	if err := model.ValidateEdge(e); err != nil {
		return errors.Wrap(err, "put edge")
	}
	if !version.VerifyEdgeIntegrity(e) {
		return errors.WithHint(
			errors.Newf("put edge %s: content does not match version hash %q", e.ID, e.Metadata.VersionHash),
			"stamp the edge before storing it",
		)
	}
	body, err := marshalBody(e)
	if err != nil {
		return errors.Wrapf(err, "put edge %s", e.ID)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeEdge(ctx, tx, e, body)
	})
}

// ArchiveNode soft-deletes a node: it stamps a successor carrying
// archived_at, and does the same for every live edge leaving the node.
// The node and its edges are archived in one transaction. Archiving an
// archived node returns it unchanged.
//
// ArchiveNode does not consult the access guard. Callers decide first.
func (s *Store) ArchiveNode(ctx context.Context, id string) (_ model.Node, err error) {
	defer func() { s.metrics.RecordStoreOp("archive_node", err) }()

	n, err := s.GetNode(ctx, id)
	if err != nil {
		return model.Node{}, errors.Wrap(err, "archive node")
	}
	if n.Metadata.IsArchived() {
		return n, nil
	}
	edges, err := s.ListEdges(ctx, id)
	if err != nil {
		return model.Node{}, errors.Wrap(err, "archive node")
	}

	at := s.now().UTC()
	n.Metadata.ArchivedAt = &at
	archived, err := s.factory.Revise(n)
	if err != nil {
		return model.Node{}, errors.Wrapf(err, "archive node %s", id)
	}
	nodeBody, err := marshalBody(archived)
	if err != nil {
		return model.Node{}, errors.Wrapf(err, "archive node %s", id)
	}

	type edgeWrite struct {
		edge model.Edge
		body string
	}
	var writes []edgeWrite
	for _, e := range edges {
		if e.Source != id || e.Metadata.IsArchived() {
			continue
		}
		e.Metadata.ArchivedAt = &at
		stamped, err := s.factory.StampEdge(e, e.Metadata.VersionHash)
		if err != nil {
			return model.Node{}, errors.Wrapf(err, "archive edge %s", e.ID)
		}
		body, err := marshalBody(stamped)
		if err != nil {
			return model.Node{}, errors.Wrapf(err, "archive edge %s", e.ID)
		}
		writes = append(writes, edgeWrite{edge: stamped, body: body})
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := writeNode(ctx, tx, archived, nodeBody); err != nil {
			return err
		}
		for _, w := range writes {
			if err := writeEdge(ctx, tx, w.edge, w.body); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Node{}, errors.Wrap(err, "archive node")
	}
	return archived, nil
}

// SaveBreakerStatus records the breaker status for the named pipeline.
func (s *Store) SaveBreakerStatus(ctx context.Context, name string, st breaker.Status) (err error) {
	defer func() { s.metrics.RecordStoreOp("save_breaker", err) }()

	body, err := marshalBody(st)
	if err != nil {
		return errors.Wrap(err, "save breaker status")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO breaker_status (name, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, name, body, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(err, "save breaker status")
	}
	return nil
}

// writeNode makes n the head of its chain inside tx.
func writeNode(ctx context.Context, tx *sql.Tx, n model.Node, body string) error {
	head, err := headHash(ctx, tx, `SELECT version_hash FROM nodes WHERE id = ?`, n.ID)
	if err != nil {
		return errors.Wrapf(err, "put node %s", n.ID)
	}
	if head == n.Metadata.VersionHash {
		return nil
	}
	if n.Metadata.PreviousVersionHash != head {
		return errors.Wrapf(ErrConflict, "put node %s: previous version %q, stored head %q",
			n.ID, n.Metadata.PreviousVersionHash, head)
	}

	seq, err := appendVersion(ctx, tx, "node", n.ID, n.Metadata, body)
	if err != nil {
		return errors.Wrapf(err, "put node %s", n.ID)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (id, type, version_hash, archived, body, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			version_hash = excluded.version_hash,
			archived = excluded.archived,
			body = excluded.body,
			seq = excluded.seq
	`,
		n.ID,
		string(n.Type()),
		n.Metadata.VersionHash,
		boolInt(n.Metadata.IsArchived()),
		body,
		seq,
	)
	if err != nil {
		return errors.Wrapf(err, "put node %s", n.ID)
	}
	return nil
}

// writeEdge makes e the head of its chain inside tx.
func writeEdge(ctx context.Context, tx *sql.Tx, e model.Edge, body string) error {
	for _, id := range []string{e.Source, e.Target} {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ?`, id).Scan(&n); err != nil {
			return errors.Wrapf(err, "put edge %s", e.ID)
		}
		if n == 0 {
			return errors.Wrapf(ErrNotFound, "put edge %s: node %s", e.ID, id)
		}
	}

	head, err := headHash(ctx, tx, `SELECT version_hash FROM edges WHERE id = ?`, e.ID)
	if err != nil {
		return errors.Wrapf(err, "put edge %s", e.ID)
	}
	if head == e.Metadata.VersionHash {
		return nil
	}
	if e.Metadata.PreviousVersionHash != head {
		return errors.Wrapf(ErrConflict, "put edge %s: previous version %q, stored head %q",
			e.ID, e.Metadata.PreviousVersionHash, head)
	}

	seq, err := appendVersion(ctx, tx, "edge", e.ID, e.Metadata, body)
	if err != nil {
		return errors.Wrapf(err, "put edge %s", e.ID)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO edges (id, source, target, relation, version_hash, archived, body, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			target = excluded.target,
			relation = excluded.relation,
			version_hash = excluded.version_hash,
			archived = excluded.archived,
			body = excluded.body,
			seq = excluded.seq
	`,
		e.ID,
		e.Source,
		e.Target,
		string(e.Relation),
		e.Metadata.VersionHash,
		boolInt(e.Metadata.IsArchived()),
		body,
		seq,
	)
	if err != nil {
		return errors.Wrapf(err, "put edge %s", e.ID)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// headHash returns the version hash selected by query, or "" when there is no row.
func headHash(ctx context.Context, tx *sql.Tx, query, id string) (string, error) {
	var h string
	err := tx.QueryRowContext(ctx, query, id).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return h, err
}

// appendVersion adds a row to the version log and returns its seq.
func appendVersion(ctx context.Context, tx *sql.Tx, kind, id string, meta model.Metadata, body string) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM versions`).Scan(&seq); err != nil {
		return 0, errors.Wrap(err, "next seq")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO versions (kind, entity_id, version_hash, previous_version_hash, body, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, kind, id, meta.VersionHash, meta.PreviousVersionHash, body, seq)
	if err != nil {
		return 0, errors.Wrap(err, "append version")
	}
	return seq, nil
}
