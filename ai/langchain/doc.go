// Package langchain adapts langchaingo clients to the ai interfaces.
//
// The openai and ollama packages build their langchaingo clients and hand
// them to NewEmbedder and NewGenerator, so error mapping and logging are the
// same for every backend.
package langchain
