package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/semweave/semweave/internal/ledger"
	"github.com/semweave/semweave/internal/matrix"
)

// ArchiveMatrix inserts a matrix and its cells. Uses ON CONFLICT DO NOTHING
// for idempotency: content-addressed ids make a duplicate write a no-op.
func (s *Store) ArchiveMatrix(ctx context.Context, thread string, m *matrix.Matrix) error {
	metadata, err := json.Marshal(orEmpty(m.Metadata))
	if err != nil {
		return fmt.Errorf("archive matrix %s: %w", m.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive matrix %s: %w", m.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matrices (id, thread, name, station, rows, cols, hash, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, m.ID, thread, m.Name, m.Station, m.Shape.Rows(), m.Shape.Cols(), m.Hash, string(metadata))
	if err != nil {
		return fmt.Errorf("archive matrix %s: %w", m.ID, err)
	}

	for _, c := range m.SortedCells() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cells (id, matrix_id, row, col, value, modality)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, c.ID, m.ID, c.Row, c.Col, c.Value, string(c.Modality))
		if err != nil {
			return fmt.Errorf("archive cell %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive matrix %s: %w", m.ID, err)
	}
	return nil
}

// ArchiveRecord inserts one provenance record, one row per produced
// output, so every output keeps an archived producer for lineage queries.
// Duplicate (id, output) pairs are silently ignored, which is what makes
// re-archiving an identical run detectable as a no-op.
func (s *Store) ArchiveRecord(ctx context.Context, rec ledger.Record) error {
	op := rec.Operation

	inputs, err := json.Marshal(op.Inputs)
	if err != nil {
		return fmt.Errorf("archive operation %s: %w", op.ID, err)
	}
	resolver, err := json.Marshal(op.Resolver)
	if err != nil {
		return fmt.Errorf("archive operation %s: %w", op.ID, err)
	}

	outputs := rec.Outputs
	if len(outputs) == 0 {
		outputs = []string{op.Output}
	}
	for _, output := range outputs {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO operations
			(id, kind, inputs, output, resolver, prompt_hash, timestamp, output_hash, station, record_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id, output) DO NOTHING
		`,
			op.ID,
			string(op.Kind),
			string(inputs),
			output,
			string(resolver),
			op.PromptHash,
			op.Timestamp,
			op.OutputHash,
			rec.Station,
			rec.Hash,
		)
		if err != nil {
			return fmt.Errorf("archive operation %s: %w", op.ID, err)
		}
	}
	return nil
}

// ArchiveRun archives every matrix of a finished run plus the full ledger.
// The first error is returned but the run itself is already complete; the
// caller decides whether a partial archive matters.
func (s *Store) ArchiveRun(ctx context.Context, thread string, matrices map[string]*matrix.Matrix, l *ledger.Ledger) error {
	for _, m := range matrices {
		if err := s.ArchiveMatrix(ctx, thread, m); err != nil {
			return err
		}
	}
	for _, rec := range l.Records() {
		if err := s.ArchiveRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
