package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/clauseguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder()

	a, err := e.EmbedText(ctx, "Refunds within 14 days")
	require.NoError(t, err)
	b, err := e.EmbedText(ctx, "Refunds within 14 days")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultDimension)
	assert.Equal(t, 2, e.CallCount())
	assert.Equal(t, DefaultEmbeddingModel, e.Model())
}

func TestMockEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	question := core.NormalizeVector(BagOfWords("How many days do I have for a refund?", DefaultDimension))
	related := core.NormalizeVector(BagOfWords("A refund may be requested within 14 days.", DefaultDimension))
	unrelated := core.NormalizeVector(BagOfWords("The court of jurisdiction is Seoul.", DefaultDimension))

	near, err := core.DotProduct(question, related)
	require.NoError(t, err)
	far, err := core.DotProduct(question, unrelated)
	require.NoError(t, err)
	assert.Greater(t, near, far)
}

func TestMockEmbedder_Batch(t *testing.T) {
	e := NewMockEmbedder()
	e.Dimension = 8

	vectors, err := e.EmbedTexts(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 8)
	}
	assert.Equal(t, 3, e.TextCount())
}

func TestMockEmbedder_Injection(t *testing.T) {
	e := NewMockEmbedder()
	e.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("boom")
	}

	_, err := e.EmbedTexts(context.Background(), []string{"x"})
	assert.Error(t, err)

	e.Reset()
	assert.Zero(t, e.CallCount())
	_, err = e.EmbedTexts(context.Background(), []string{"x"})
	assert.NoError(t, err)
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator()

	text, err := g.Generate(context.Background(), "prompt one")
	require.NoError(t, err)
	assert.Equal(t, DefaultReply, text)

	g.GenerateFunc = func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	}
	text, err = g.Generate(context.Background(), "prompt two")
	require.NoError(t, err)
	assert.Equal(t, "echo: prompt two", text)

	assert.Equal(t, []string{"prompt one", "prompt two"}, g.Prompts())
	assert.Equal(t, 2, g.CallCount())

	g.Reset()
	assert.Empty(t, g.Prompts())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockGenerator(), p.Generator())
	assert.NoError(t, p.Close())
}
