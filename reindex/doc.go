// Package reindex rebuilds a collection's vector index with a different
// embedding model.
//
// The catalog keeps the text of every chunk, so switching models does not
// require the original files. A Reindexer empties the index, re-embeds every
// catalogued chunk in batches (retrying failed embedding calls with
// exponential backoff), and finally records the new model in the collection
// manifest. Until that last step succeeds the old manifest stays in place and
// answering refuses the new embedder, so an interrupted run is simply run
// again.
package reindex
