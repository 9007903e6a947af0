// Package ledger accumulates operation records for one pipeline run and
// answers lineage queries over the accumulated graph.
//
// A Ledger is owned by a single run driver; it is not safe for concurrent
// use and does not need to be, since stations execute strictly in order.
// Records are append-only: nothing is ever mutated or deleted.
package ledger

import (
	"time"

	"github.com/semweave/semweave/internal/ident"
	"github.com/semweave/semweave/internal/matrix"
)

// Record is one provenance entry: the operation, the station tag it was
// recorded under, and an integrity hash over the record's own fields.
//
// Outputs lists every entity the record produced. Operation.Output holds
// only the first of them, so multi-output markers (s1_load produces both
// seed matrices) need the full list to archive one lineage row per output.
type Record struct {
	Operation matrix.Operation `json:"operation"`
	Station   string           `json:"station"`
	Outputs   []string         `json:"outputs"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	Hash      string           `json:"hash"`
}

// entry is the lineage index value for one output id.
type entry struct {
	operationID string
	sources     []string
	timestamp   string
}

// Ledger owns the growing collection of operations and the lineage index
// from each output id to its immediate sources.
type Ledger struct {
	records []Record
	lineage map[string]entry
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{lineage: make(map[string]entry)}
}

// Append records an operation produced by an operation function under a
// station tag, updates the lineage index for its output, and returns the
// operation id.
func (l *Ledger) Append(op matrix.Operation, station string, metadata map[string]any) string {
	rec := Record{Operation: op, Station: station, Outputs: []string{op.Output}, Metadata: metadata}
	rec.Hash = recordHash(rec)
	l.records = append(l.records, rec)

	l.lineage[op.Output] = entry{
		operationID: op.ID,
		sources:     op.Inputs,
		timestamp:   op.Timestamp,
	}
	return op.ID
}

// TrackOperation records a stage-level marker that has no resolver behind
// it (loads, confirmations). The operation id stays deterministic: the
// output hash is derived from the output ids themselves and there is no
// prompt content to hash.
func (l *Ledger) TrackOperation(kind string, inputs, outputs []string, metadata map[string]any) string {
	outputHash := ident.ContentHash(outputs)
	opID := ident.OperationID(kind, inputs, outputHash, "")

	output := ""
	if len(outputs) > 0 {
		output = outputs[0]
	}
	op := matrix.Operation{
		ID:         opID,
		Kind:       matrix.Kind(kind),
		Inputs:     inputs,
		Output:     output,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		OutputHash: outputHash,
	}

	rec := Record{Operation: op, Outputs: outputs, Metadata: metadata}
	if station, ok := metadata["station"].(string); ok {
		rec.Station = station
	}
	rec.Hash = recordHash(rec)
	l.records = append(l.records, rec)

	for _, out := range outputs {
		l.lineage[out] = entry{operationID: opID, sources: inputs, timestamp: op.Timestamp}
	}
	return opID
}

// LineageNode is one level of an ancestry tree. Known is false for ids the
// ledger has never seen; that is a marker, not an error.
type LineageNode struct {
	ID        string         `json:"id"`
	Known     bool           `json:"known"`
	Operation string         `json:"operation,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Sources   []*LineageNode `json:"sources,omitempty"`
}

// Lineage returns the ancestry of an entity up to depth levels. Depth 1
// returns immediate sources only; sources below the requested depth appear
// as bare ids with no further expansion.
func (l *Ledger) Lineage(entityID string, depth int) *LineageNode {
	ent, ok := l.lineage[entityID]
	if !ok {
		return &LineageNode{ID: entityID, Known: false}
	}

	node := &LineageNode{
		ID:        entityID,
		Known:     true,
		Operation: ent.operationID,
		Timestamp: ent.timestamp,
	}
	if depth < 1 {
		return node
	}
	for _, src := range ent.sources {
		if depth == 1 {
			_, known := l.lineage[src]
			node.Sources = append(node.Sources, &LineageNode{ID: src, Known: known})
			continue
		}
		node.Sources = append(node.Sources, l.Lineage(src, depth-1))
	}
	return node
}

// Records returns the accumulated provenance records in append order.
func (l *Ledger) Records() []Record {
	return l.records
}

// Operations returns the accumulated operations in append order.
func (l *Ledger) Operations() []matrix.Operation {
	ops := make([]matrix.Operation, len(l.records))
	for i, rec := range l.records {
		ops[i] = rec.Operation
	}
	return ops
}

// Verify recomputes every record's integrity hash and returns an
// *matrix.IntegrityError for the first mismatch. Integrity violations are
// always fatal and never retried.
func (l *Ledger) Verify() error {
	for _, rec := range l.records {
		if computed := recordHash(rec); computed != rec.Hash {
			return &matrix.IntegrityError{Entity: rec.Operation.ID, Stored: rec.Hash, Computed: computed}
		}
	}
	return nil
}

// recordHash digests a record's canonicalized fields, excluding the hash
// itself.
func recordHash(rec Record) string {
	return ident.RecordHash(map[string]any{
		"operation": rec.Operation,
		"station":   rec.Station,
		"outputs":   rec.Outputs,
		"metadata":  rec.Metadata,
	})
}
