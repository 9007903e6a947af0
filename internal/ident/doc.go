// Package ident provides deterministic, content-derived identifiers for
// threads, matrices, cells, and operations.
//
// This package contains pure functions only. Every other internal package
// may import ident; ident imports nothing internal, keeping identity the
// foundational layer with no circular dependencies.
//
// All identifiers are stable: the same input always yields the same id.
// Entity kinds carry distinct prefixes (cf14:, op:) so ids from different
// kinds can never collide.
package ident
