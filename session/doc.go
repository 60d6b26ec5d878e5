// Package session implements the durable session service on top of the
// SQLite store. Sessions carry a mutable JSON state blob and an append-only
// event log; state mutation goes through the store's atomic update primitive
// so concurrent patches never lose writes.
package session
