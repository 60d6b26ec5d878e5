// Package core defines the domain contracts shared by every pacekeeper
// subsystem: bus event kinds and payloads, persisted session and history
// records, the store interfaces the SQLite layer implements, and the sentinel
// errors callers branch on. Keeping the contracts here lets higher level
// packages (machines, plan cache, dashboard) depend on behavior instead of on
// a concrete storage backend.
package core
