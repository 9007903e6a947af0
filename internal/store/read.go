package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/semweave/semweave/internal/ledger"
	"github.com/semweave/semweave/internal/matrix"
)

// ErrNotFound is returned when the requested entity is not archived.
var ErrNotFound = errors.New("not found in archive")

// GetMatrix reconstructs an archived matrix, cells included. The cells come
// back in (row, col) order so the reconstructed matrix reproduces its
// stored hash.
func (s *Store) GetMatrix(ctx context.Context, id string) (*matrix.Matrix, error) {
	var (
		m          matrix.Matrix
		rows, cols int
		metadata   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, station, rows, cols, hash, metadata
		FROM matrices WHERE id = ?
	`, id).Scan(&m.ID, &m.Name, &m.Station, &rows, &cols, &m.Hash, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("matrix %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get matrix %s: %w", id, err)
	}
	m.Shape = matrix.Shape{rows, cols}

	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &m.Metadata); err != nil {
			return nil, fmt.Errorf("get matrix %s: decode metadata: %w", id, err)
		}
	}

	cellRows, err := s.db.QueryContext(ctx, `
		SELECT id, row, col, value, modality
		FROM cells WHERE matrix_id = ?
		ORDER BY row ASC, col ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get matrix %s: %w", id, err)
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var c matrix.Cell
		var modality string
		if err := cellRows.Scan(&c.ID, &c.Row, &c.Col, &c.Value, &modality); err != nil {
			return nil, fmt.Errorf("get matrix %s: %w", id, err)
		}
		c.Modality = matrix.Modality(modality)
		m.Cells = append(m.Cells, c)
	}
	if err := cellRows.Err(); err != nil {
		return nil, fmt.Errorf("get matrix %s: %w", id, err)
	}

	return &m, nil
}

// Lineage reconstructs an ancestry tree from archived operations, mirroring
// the in-memory ledger's query: depth 1 returns immediate sources only, and
// an id with no recorded producer comes back as an unknown marker.
func (s *Store) Lineage(ctx context.Context, entityID string, depth int) (*ledger.LineageNode, error) {
	var (
		opID, timestamp, inputs string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, inputs FROM operations
		WHERE output = ?
		ORDER BY timestamp DESC LIMIT 1
	`, entityID).Scan(&opID, &timestamp, &inputs)
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.LineageNode{ID: entityID, Known: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lineage %s: %w", entityID, err)
	}

	node := &ledger.LineageNode{ID: entityID, Known: true, Operation: opID, Timestamp: timestamp}
	var sources []string
	if err := json.Unmarshal([]byte(inputs), &sources); err != nil {
		return nil, fmt.Errorf("lineage %s: decode inputs: %w", entityID, err)
	}
	if depth < 1 {
		return node, nil
	}
	for _, src := range sources {
		if depth == 1 {
			known, err := s.hasProducer(ctx, src)
			if err != nil {
				return nil, err
			}
			node.Sources = append(node.Sources, &ledger.LineageNode{ID: src, Known: known})
			continue
		}
		child, err := s.Lineage(ctx, src, depth-1)
		if err != nil {
			return nil, err
		}
		node.Sources = append(node.Sources, child)
	}
	return node, nil
}

func (s *Store) hasProducer(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM operations WHERE output = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lineage probe %s: %w", id, err)
	}
	return n > 0, nil
}

// ListOperations returns archived operations for matrices of a thread,
// ordered by timestamp then id for deterministic output. An operation is
// archived with one row per output; the listing reports it once.
func (s *Store) ListOperations(ctx context.Context, thread string) ([]matrix.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.kind, o.inputs, o.output, o.resolver, o.prompt_hash, o.timestamp, o.output_hash
		FROM operations o
		LEFT JOIN matrices m ON o.output = m.id
		WHERE m.thread = ? OR o.output = ''
		ORDER BY o.timestamp ASC, o.id COLLATE BINARY ASC, o.output COLLATE BINARY ASC
	`, thread)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	ops := []matrix.Operation{}
	for rows.Next() {
		var (
			op               matrix.Operation
			kind             string
			inputs, resolver string
		)
		if err := rows.Scan(&op.ID, &kind, &inputs, &op.Output, &resolver, &op.PromptHash, &op.Timestamp, &op.OutputHash); err != nil {
			return nil, fmt.Errorf("list operations: %w", err)
		}
		op.Kind = matrix.Kind(kind)
		if err := json.Unmarshal([]byte(inputs), &op.Inputs); err != nil {
			return nil, fmt.Errorf("list operations: decode inputs for %s: %w", op.ID, err)
		}
		if err := json.Unmarshal([]byte(resolver), &op.Resolver); err != nil {
			return nil, fmt.Errorf("list operations: decode resolver for %s: %w", op.ID, err)
		}
		if seen[op.ID] {
			continue
		}
		seen[op.ID] = true
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}
