package langchain

import (
	"context"
	"log/slog"

	"github.com/poiesic/clauseguard/ai"
	"github.com/tmc/langchaingo/llms"
)

// Generator implements ai.Generator on top of any langchaingo model.
type Generator struct {
	llm         llms.Model
	model       string
	temperature float64
	logger      *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator wraps llm.
func NewGenerator(llm llms.Model, model string, temperature float64, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		llm:         llm,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// Model returns the generation model identifier.
func (g *Generator) Model() string {
	return g.model
}

// Generate returns the model's completion of prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generating completion", "model", g.model, "prompt_length", len(prompt))

	text, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, llms.WithTemperature(g.temperature))
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", ai.GenerationError(err)
	}
	return text, nil
}
