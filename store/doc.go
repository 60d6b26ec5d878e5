// Package store implements the durable SQLite-backed state layer: key/value
// user state, the append-only task history, the plan cache, and the raw
// tables the session service builds on.
//
// One Store instance owns one database file. Reads go through the connection
// pool and may run concurrently; every mutation is serialized through a
// single write mutex, with WAL mode letting readers proceed alongside the
// writer. The AtomicUpdate primitive extends that mutex over a full
// read-modify-write so concurrent state patches cannot lose updates.
package store
