package chunking

import (
	"log/slog"

	"github.com/poiesic/clauseguard/core"
)

// Default chunking parameters, in runes.
const (
	DefaultMaxSize = 1000
	DefaultOverlap = 200
)

// separators are tried in order when looking for a natural cut point.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

// Span is a half-open rune range [Start, End) of a text.
type Span struct {
	Start int
	End   int
	Text  string
}

// Len returns the length of the span in runes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Split divides text into spans of at most maxSize runes where each span
// after the first begins overlap runes before the end of its predecessor.
// Concatenating the first span with every later span minus its leading
// overlap reproduces text exactly.
func Split(text string, maxSize, overlap int) ([]Span, error) {
	if err := core.ValidateChunkParams(maxSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	var spans []Span
	start := 0
	for {
		if n-start <= maxSize {
			spans = append(spans, Span{Start: start, End: n, Text: string(runes[start:n])})
			return spans, nil
		}
		end := cutPoint(runes, start, maxSize, overlap)
		spans = append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
		start = end - overlap
	}
}

// cutPoint picks the end of the span starting at start.
// The result lies in (start+overlap, start+maxSize] so the next span always
// advances.
func cutPoint(runes []rune, start, maxSize, overlap int) int {
	limit := start + maxSize
	floor := max(start+overlap+1, start+maxSize/2)

	for _, sep := range separators {
		// Cut after the separator so it stays with the preceding text.
		for end := limit; end >= floor; end-- {
			if end-len(sep) < start {
				break
			}
			if hasSuffix(runes[:end], sep) {
				return end
			}
		}
	}
	return limit
}

func hasSuffix(runes, suffix []rune) bool {
	if len(runes) < len(suffix) {
		return false
	}
	off := len(runes) - len(suffix)
	for i, r := range suffix {
		if runes[off+i] != r {
			return false
		}
	}
	return true
}

// Chunker turns documents into chunks with fixed size and overlap.
// It is stateless after construction and safe for concurrent use.
type Chunker struct {
	maxSize int
	overlap int
	logger  *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "chunker")
		return nil
	}
}

// NewChunker creates a chunker. Invalid parameters fail with core.ErrInvalidConfig.
func NewChunker(maxSize, overlap int, opts ...Option) (*Chunker, error) {
	if err := core.ValidateChunkParams(maxSize, overlap); err != nil {
		return nil, err
	}
	c := &Chunker{
		maxSize: maxSize,
		overlap: overlap,
		logger:  slog.Default().With("component", "chunker"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MaxSize returns the configured maximum chunk length in runes.
func (c *Chunker) MaxSize() int {
	return c.maxSize
}

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits a document into chunks tagged with the document's source.
// Empty text yields no chunks.
func (c *Chunker) Chunk(doc core.Document) ([]core.Chunk, error) {
	if err := core.ValidateDocument(&doc); err != nil {
		return nil, err
	}
	spans, err := Split(doc.Text, c.maxSize, c.overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]core.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = core.Chunk{
			Id:     core.ChunkID(doc.Source, i, span.Text),
			Source: doc.Source,
			Seq:    i,
			Start:  span.Start,
			Text:   span.Text,
		}
	}
	c.logger.Debug("chunked document", "source", doc.Source, "runes", len([]rune(doc.Text)), "chunks", len(chunks))
	return chunks, nil
}
