package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/model"
)

// GetNode returns the current version of a node, or ErrNotFound.
func (s *Store) GetNode(ctx context.Context, id string) (n model.Node, err error) {
	defer func() { s.metrics.RecordStoreOp("get_node", err) }()

	var body string
	err = s.db.QueryRowContext(ctx, `SELECT body FROM nodes WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Node{}, errors.Wrapf(ErrNotFound, "node %s", id)
	}
	if err != nil {
		return model.Node{}, errors.Wrapf(err, "get node %s", id)
	}
	return unmarshalNode(body)
}

// GetEdge returns the current version of an edge, or ErrNotFound.
func (s *Store) GetEdge(ctx context.Context, id string) (model.Edge, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM edges WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Edge{}, errors.Wrapf(ErrNotFound, "edge %s", id)
	}
	if err != nil {
		return model.Edge{}, errors.Wrapf(err, "get edge %s", id)
	}
	return unmarshalEdge(body)
}

// ListNodes returns the current version of every node, ordered by id.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListNodes(ctx context.Context) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM nodes ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "query nodes")
	}
	defer rows.Close()

	nodes := []model.Node{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scan node")
		}
		n, err := unmarshalNode(body)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate nodes")
	}
	return nodes, nil
}

// ListEdges returns the current version of every edge touching nodeID as
// source or target, or every edge when nodeID is empty. Ordered by id.
// Archived edges are included.
func (s *Store) ListEdges(ctx context.Context, nodeID string) (edges []model.Edge, err error) {
	defer func() { s.metrics.RecordStoreOp("list_edges", err) }()

	query := `SELECT body FROM edges ORDER BY id COLLATE BINARY ASC`
	var args []any
	if nodeID != "" {
		query = `SELECT body FROM edges WHERE source = ? OR target = ? ORDER BY id COLLATE BINARY ASC`
		args = []any{nodeID, nodeID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query edges")
	}
	defer rows.Close()

	edges = []model.Edge{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scan edge")
		}
		e, err := unmarshalEdge(body)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate edges")
	}
	return edges, nil
}

// LoadGraph returns every stored node and edge, archived ones included.
func (s *Store) LoadGraph(ctx context.Context) (model.Graph, error) {
	nodes, err := s.ListNodes(ctx)
	if err != nil {
		return model.Graph{}, errors.Wrap(err, "load graph")
	}
	edges, err := s.ListEdges(ctx, "")
	if err != nil {
		return model.Graph{}, errors.Wrap(err, "load graph")
	}
	return model.NewGraph(nodes, edges), nil
}

// History returns every stored version of a node, oldest first, ready for
// version.VerifyChain. ErrNotFound when the node was never stored.
func (s *Store) History(ctx context.Context, id string) (versions []model.Node, err error) {
	defer func() { s.metrics.RecordStoreOp("history", err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM versions
		WHERE kind = 'node' AND entity_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "query history of %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scan version")
		}
		n, err := unmarshalNode(body)
		if err != nil {
			return nil, err
		}
		versions = append(versions, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate history")
	}
	if len(versions) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "node %s", id)
	}
	return versions, nil
}

// LoadBreakerStatus returns the saved status for the named pipeline, or ErrNotFound.
func (s *Store) LoadBreakerStatus(ctx context.Context, name string) (breaker.Status, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM breaker_status WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return breaker.Status{}, errors.Wrapf(ErrNotFound, "breaker status %s", name)
	}
	if err != nil {
		return breaker.Status{}, errors.Wrap(err, "load breaker status")
	}
	return unmarshalStatus(body)
}
