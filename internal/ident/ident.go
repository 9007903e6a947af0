package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Id-space prefixes. Keeping thread-derived ids and operation ids in
// separate namespaces means an operation id can never be mistaken for a
// matrix or cell id.
const (
	ThreadPrefix    = "cf14:"
	OperationPrefix = "op:"
)

// Truncation lengths for hex digests. Short ids keep lineage output and
// database keys readable; collision probability at these lengths is
// negligible for single-pipeline scale.
const (
	threadDigestLen    = 12
	cellDigestLen      = 12
	operationDigestLen = 16
	contentDigestLen   = 16
)

func shortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}

// ThreadID derives a deterministic thread id from a seed string.
// The seed is canonicalized first so cosmetic variants map to one thread.
func ThreadID(seed string) string {
	return ThreadPrefix + shortHash(Canonical(seed), threadDigestLen)
}

// MatrixID composes a deterministic, human-inspectable matrix id.
// Unlike the hashed ids, the composition is left readable on purpose:
// "cf14:ab12cd34ef56:C:v1" tells an operator exactly which artifact it is.
func MatrixID(thread, name string, version int) string {
	return fmt.Sprintf("%s:%s:v%d", thread, name, version)
}

// CellID derives a deterministic cell id from position and canonical value,
// namespaced under the parent matrix id. Changing the value changes the id;
// changing unrelated metadata does not.
func CellID(matrixID string, row, col int, canonicalValue string) string {
	basis := fmt.Sprintf("%d|%d|%s", row, col, canonicalValue)
	return fmt.Sprintf("%s:%d:%d:%s", matrixID, row, col, shortHash(basis, cellDigestLen))
}

// OperationID derives a deterministic operation id. Input ids are sorted so
// the id is order-independent: re-running the identical operation on the
// identical inputs yields the identical id, which is what makes idempotent
// re-runs detectable.
func OperationID(kind string, inputs []string, outputHash, promptHash string) string {
	sorted := make([]string, len(inputs))
	copy(sorted, inputs)
	sort.Strings(sorted)
	basis := fmt.Sprintf("%s|%s|%s|%s", kind, strings.Join(sorted, ","), outputHash, promptHash)
	return OperationPrefix + shortHash(basis, operationDigestLen)
}

// ContentHash hashes a sequence of already position-sorted canonical values.
// The values are encoded as a JSON array so that value boundaries are
// unambiguous (no separator-injection between adjacent values).
func ContentHash(values []string) string {
	encoded, err := json.Marshal(values)
	if err != nil {
		// []string marshaling cannot fail; keep the contract total anyway.
		encoded = []byte(strings.Join(values, "\x00"))
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:contentDigestLen]
}

// PromptHash hashes instruction content plus its context mapping. The core
// never parses instruction content; it only needs a stable digest for the
// provenance record.
func PromptHash(system, user string, context map[string]string) string {
	h := sha256.New()
	h.Write([]byte(Canonical(system)))
	h.Write([]byte("\n\n"))
	h.Write([]byte(Canonical(user)))
	h.Write([]byte("\n\n"))

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0x00})
		h.Write([]byte(context[k]))
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RecordHash hashes an arbitrary JSON-serializable record with sorted keys.
// Used by the provenance ledger for per-record integrity digests.
func RecordHash(fields map[string]any) string {
	encoded := canonicalJSON(fields)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:contentDigestLen]
}

// canonicalJSON renders a map with deterministically ordered keys.
// encoding/json already sorts map keys, but nested maps of type
// map[string]any must round-trip through it uniformly, so we centralize
// the call here.
func canonicalJSON(v any) []byte {
	encoded, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%v", v))
	}
	return encoded
}
