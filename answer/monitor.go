package answer

import (
	"log/slog"

	"github.com/poiesic/clauseguard/core"
)

// AnswerMonitor provides hooks to observe the answering process.
// Implement this interface to track intermediate steps and results.
type AnswerMonitor interface {
	Start(question string)
	AfterRetrieval(chunks []core.ScoredChunk)
	BeforeGeneration(prompt string)
	Finish(result *core.AnswerResult)
}

// noopMonitor is a no-op implementation of AnswerMonitor
type noopMonitor struct{}

var _ AnswerMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                      {}
func (n *noopMonitor) AfterRetrieval(_ []core.ScoredChunk) {}
func (n *noopMonitor) BeforeGeneration(_ string)           {}
func (n *noopMonitor) Finish(_ *core.AnswerResult)         {}

// LogMonitor reports every stage to a logger at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ AnswerMonitor = (*LogMonitor)(nil)

func (m *LogMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *LogMonitor) Start(question string) {
	m.logger().Debug("answering", "question", question)
}

func (m *LogMonitor) AfterRetrieval(chunks []core.ScoredChunk) {
	for rank, sc := range chunks {
		m.logger().Debug("retrieved chunk",
			"rank", rank+1,
			"source", sc.Chunk.Source,
			"seq", sc.Chunk.Seq,
			"score", sc.Score)
	}
}

func (m *LogMonitor) BeforeGeneration(prompt string) {
	m.logger().Debug("generating", "prompt_chars", len(prompt))
}

func (m *LogMonitor) Finish(result *core.AnswerResult) {
	m.logger().Debug("answered", "sources", result.Sources, "answer_chars", len(result.Text))
}
