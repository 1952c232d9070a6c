package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/clauseguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTerms = `Article 1 (Purpose)
These terms govern the use of the service provided by the company.

Article 2 (Refunds)
A member may request a refund within 14 days of purchase. Refunds are paid to the original payment method. Digital content that has been downloaded is not refundable.

Article 3 (Liability)
The company is not liable for damages caused by force majeure, including natural disasters and outages of telecommunication providers.`

// rebuild concatenates spans, dropping each later span's leading overlap.
func rebuild(spans []Span, overlap int) string {
	var b strings.Builder
	for i, s := range spans {
		r := []rune(s.Text)
		if i > 0 {
			r = r[overlap:]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func assertChunkInvariants(t *testing.T, text string, spans []Span, maxSize, overlap int) {
	t.Helper()
	runes := []rune(text)

	require.NotEmpty(t, spans)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(runes), spans[len(spans)-1].End)

	for i, s := range spans {
		assert.LessOrEqual(t, s.Len(), maxSize, "span %d too long", i)
		assert.Equal(t, s.Len(), utf8.RuneCountInString(s.Text))
		assert.Equal(t, string(runes[s.Start:s.End]), s.Text)
		if i > 0 {
			prev := spans[i-1]
			assert.Equal(t, prev.End-overlap, s.Start, "span %d does not overlap exactly", i)
			assert.Greater(t, s.Start, prev.Start)
		}
	}
	assert.Equal(t, text, rebuild(spans, overlap))
}

func TestSplit_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans, err := Split("some text", tt.maxSize, tt.overlap)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
			assert.Nil(t, spans)
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	spans, err := Split("", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestSplit_ShortTextIsSingleSpan(t *testing.T) {
	spans, err := Split("short clause", 100, 10)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 0, End: 12, Text: "short clause"}, spans[0])
}

func TestSplit_HardCut(t *testing.T) {
	spans, err := Split("abcdefghij", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []Span{
		{Start: 0, End: 4, Text: "abcd"},
		{Start: 3, End: 7, Text: "defg"},
		{Start: 6, End: 10, Text: "ghij"},
	}, spans)
}

func TestSplit_PrefersSpaces(t *testing.T) {
	spans, err := Split("aaa bbb ccc ddd", 8, 0)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, "aaa bbb ", spans[0].Text)
	assert.Equal(t, "ccc ddd", spans[1].Text)
}

func TestSplit_PrefersParagraphBreak(t *testing.T) {
	text := "Clause 1. Refunds.\n\nClause 2. Fees apply here."
	spans, err := Split(text, 30, 0)
	require.NoError(t, err)
	require.NotEmpty(t, spans)
	assert.Equal(t, "Clause 1. Refunds.\n\n", spans[0].Text)
	assertChunkInvariants(t, text, spans, 30, 0)
}

func TestSplit_Invariants(t *testing.T) {
	params := []struct {
		maxSize int
		overlap int
	}{
		{40, 10},
		{50, 0},
		{64, 63},
		{100, 20},
		{7, 3},
		{1, 0},
	}

	for _, p := range params {
		spans, err := Split(sampleTerms, p.maxSize, p.overlap)
		require.NoError(t, err)
		assertChunkInvariants(t, sampleTerms, spans, p.maxSize, p.overlap)
	}
}

func TestSplit_MultibyteText(t *testing.T) {
	text := "제1조목적이약관은회사가제공하는서비스의이용조건을규정합니다제2조환불회원은구매후십사일이내에환불을요청할수있습니다"
	spans, err := Split(text, 5, 2)
	require.NoError(t, err)
	assertChunkInvariants(t, text, spans, 5, 2)

	for _, s := range spans {
		assert.True(t, utf8.ValidString(s.Text))
	}
}

func TestSplit_Deterministic(t *testing.T) {
	first, err := Split(sampleTerms, 80, 15)
	require.NoError(t, err)
	second, err := Split(sampleTerms, 80, 15)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewChunker_InvalidConfig(t *testing.T) {
	_, err := NewChunker(10, 10)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestChunker_Chunk(t *testing.T) {
	c, err := NewChunker(40, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, c.MaxSize())
	assert.Equal(t, 10, c.Overlap())

	doc := core.Document{Source: "terms.txt", Text: sampleTerms}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	runes := []rune(sampleTerms)
	for i, ch := range chunks {
		assert.Equal(t, "terms.txt", ch.Source)
		assert.Equal(t, i, ch.Seq)
		assert.Equal(t, core.ChunkID("terms.txt", i, ch.Text), ch.Id)
		assert.Equal(t, string(runes[ch.Start:ch.Start+utf8.RuneCountInString(ch.Text)]), ch.Text)
	}

	again, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, chunks, again)

	t.Run("empty text", func(t *testing.T) {
		chunks, err := c.Chunk(core.Document{Source: "empty.txt"})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := c.Chunk(core.Document{Text: "text"})
		assert.ErrorIs(t, err, core.ErrEmptySource)
	})
}
