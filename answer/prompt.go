package answer

import (
	"strings"

	"github.com/poiesic/clauseguard/core"
	"github.com/tmc/langchaingo/prompts"
)

// PromptTemplate is the default prompt. It is rendered as a Go template with
// the variables context and question.
const PromptTemplate = `You are an assistant that supports the analysis of legal documents.
Answer the user's question using only the reference material in the context below.

Instructions:
1. Compare the legal standards in the reference material (statutes, guidelines) with the terms the question is about.
2. Write plainly and factually. Leave out emotional language and unnecessary modifiers.
3. Name the clauses and source files your answer relies on.

Answer format:
- Verdict: (No issue / Needs review / Possible violation)
- Analysis: (compare the legal standard with the terms and explain)
- References: (source file names)

Context:
{{.context}}

Question: {{.question}}
Answer:`

// newPrompt builds a prompt template from text.
func newPrompt(text string) prompts.PromptTemplate {
	return prompts.NewPromptTemplate(text, []string{"context", "question"})
}

// FormatContext renders retrieved chunks as the context block of the prompt.
// Every chunk is preceded by a line naming its source.
func FormatContext(chunks []core.ScoredChunk) string {
	var b strings.Builder
	for i, sc := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[source: ")
		b.WriteString(sc.Chunk.Source)
		b.WriteString("]\n")
		b.WriteString(sc.Chunk.Text)
	}
	return b.String()
}

// distinctSources returns the sources of chunks in rank order, without repeats.
func distinctSources(chunks []core.ScoredChunk) []string {
	seen := make(map[string]bool, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, sc := range chunks {
		if seen[sc.Chunk.Source] {
			continue
		}
		seen[sc.Chunk.Source] = true
		sources = append(sources, sc.Chunk.Source)
	}
	return sources
}
