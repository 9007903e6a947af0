// Package matrix defines the content-addressed data model: Cell, Matrix,
// Operation, and Station descriptors.
//
// All entities are immutable by convention. A changed cell value means a new
// Cell (and a new id); a changed matrix means a new Matrix instance. Nothing
// in this package, or anywhere else, patches a constructed entity in place.
//
// Key design constraints:
//   - Cell and matrix ids are deterministic functions of content (package ident)
//   - Matrix hashes are computed over position-sorted canonical cell values
//   - JSON tags use snake_case and match the external matrix file format
package matrix
