// Package chromem implements storage.VectorIndex on chromem-go, an embedded
// vector database. The index runs in memory or persists each collection to a
// directory. Chunk fields are kept as document metadata so query results can
// be turned back into chunks without consulting the catalog.
package chromem
