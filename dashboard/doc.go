// Package dashboard builds read-only projections over the store: the
// at-a-glance stats block, the paginated task history, and the recent
// session listing. Nothing here mutates state.
package dashboard
