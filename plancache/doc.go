// Package plancache avoids recomputing expensive task decompositions for
// previously seen descriptions. Lookup is by truncated content hash of the
// normalized description; a naive keyword-overlap similarity search covers
// near-miss queries. Persistence is delegated to a core.PlanStore.
package plancache
