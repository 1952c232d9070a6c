// Package chunking splits document text into overlapping, size-bounded chunks.
//
// Lengths are measured in runes so multi-byte scripts are never cut inside a
// character. A chunk ends at the last paragraph break, line break, sentence
// end or space found in the back half of its window, falling back to a hard
// cut at the maximum size. Every chunk after the first starts exactly
// overlap runes before the end of the previous one, so the original text can
// be rebuilt by dropping each chunk's leading overlap.
package chunking
