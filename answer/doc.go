// Package answer answers questions by retrieval-augmented generation.
//
// The Answerer embeds the question, retrieves the closest chunks from the
// vector index, labels each with its source and asks the generator to answer
// from that context alone. The result carries the generated text verbatim
// together with the sources that were retrieved.
//
// An empty index is not an error: the generator is still called, with an
// empty context, and its answer is returned. Vectors from a different
// embedding model than the one recorded in the collection manifest are
// refused with core.ErrEmbeddingMismatch.
package answer
