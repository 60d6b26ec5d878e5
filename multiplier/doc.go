// Package multiplier derives the time-estimation correction factor from
// energy level, medication peak window and time of day, with a learned
// per-category override once enough completion history accumulates. The core
// arithmetic (Dynamic, InPeakWindow) is pure so it can be exhaustively tested
// without a store.
package multiplier
