// Package loader extracts plain text from uploaded files.
//
// FileLoader picks an extractor by file extension: PDF pages are joined by a
// blank line, DOCX paragraphs become lines, XLSX sheets become tab-separated
// rows under a "## Sheet:" heading, and Markdown is reduced to its text. The
// document source is the base name of the file.
package loader
