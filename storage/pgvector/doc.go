// Package pgvector implements storage.VectorIndex on PostgreSQL with the
// pgvector extension, accessed through bun. All collections share one table
// keyed by (collection, id); similarity is cosine distance via the <=>
// operator.
//
// Both pgdriver and lib/pq are supported as database/sql drivers. Setting
// Config.Debug installs a bundebug query hook.
package pgvector
