package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing.
type ID uint64

// String renders the ID as fixed-width hex, the form used as a vector index key.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// ParseID parses the hex form produced by ID.String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the identifier of the chunk at position seq of source.
// Re-ingesting identical text yields identical IDs, so upserts replace in place.
func ChunkID(source string, seq int, text string) ID {
	return IDFromContent(source + "\x00" + strconv.Itoa(seq) + "\x00" + text)
}

// Document is a named blob of extracted text.
// Documents are never persisted; only the chunks derived from them are.
type Document struct {
	Source string // Source identifier, usually the original file name
	Text   string
}

// Chunk is a contiguous span of a document's text, the unit of indexing.
type Chunk struct {
	Id     ID
	Source string
	Seq    int // Position of the chunk within its document, starting at 0
	Start  int // Rune offset of the chunk within the document text
	Text   string
}

// IndexEntry is what the vector index stores for a chunk.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// ScoredChunk is a chunk returned from a similarity query.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// AnswerResult is a generated answer together with the evidence it was grounded on.
type AnswerResult struct {
	Text       string        `json:"text"`
	Sources    []string      `json:"sources"`
	Chunks     []ScoredChunk `json:"chunks,omitempty"`
	NoEvidence bool          `json:"no_evidence"` // nothing was retrieved; Text was generated without context
}

// DocumentRecord is the catalog entry kept for every ingested document.
type DocumentRecord struct {
	Source     string    `json:"source"`
	Chunks     int       `json:"chunks"`
	Characters int       `json:"characters"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Metric identifies the similarity function of a vector index.
type Metric string

const (
	// MetricCosine is cosine similarity; vectors are stored unit-normalized.
	MetricCosine Metric = "cosine"
)

// Manifest records which embedding function produced the vectors of a collection.
// Vectors from different embedding functions must never be compared.
type Manifest struct {
	Collection     string
	EmbeddingModel string
	Dimension      int
	Metric         Metric
	// Reindexing is set while a reindex rebuilds the index for EmbeddingModel.
	// The index then holds a partial set of vectors and must not be used.
	Reindexing bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Fingerprint identifies the embedding space of the manifest.
func (m *Manifest) Fingerprint() string {
	return m.EmbeddingModel + "|" + strconv.Itoa(m.Dimension) + "|" + string(m.Metric)
}
