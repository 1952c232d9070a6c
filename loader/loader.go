package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poiesic/clauseguard/core"
)

var (
	// ErrUnsupportedFormat is returned for files whose extension has no extractor.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoInput is returned when an Input carries neither data nor a path.
	ErrNoInput = errors.New("input has no data and no path")
)

// Input is a file to be turned into a Document, either already in memory
// (Data) or on disk (Path).
type Input struct {
	// Name is the original file name. Its extension selects the extractor
	// and its base name becomes the document source. Defaults to Path.
	Name string
	Path string
	Data []byte
}

// Source returns the source identifier a document loaded from in would carry.
func (in Input) Source() string {
	name := in.Name
	if name == "" {
		name = in.Path
	}
	return filepath.Base(name)
}

func (in Input) ext() string {
	name := in.Name
	if name == "" {
		name = in.Path
	}
	return strings.ToLower(filepath.Ext(name))
}

// Loader extracts the text of an input.
// Implementations must be safe for concurrent use.
type Loader interface {
	Load(ctx context.Context, in Input) (core.Document, error)
}

// Extractor turns raw file bytes into plain text.
type Extractor func(data []byte) (string, error)

// FileLoader dispatches on the file extension.
type FileLoader struct {
	extractors map[string]Extractor
	logger     *slog.Logger
}

var _ Loader = (*FileLoader)(nil)

// Option configures a FileLoader.
type Option func(*FileLoader) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *FileLoader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger.With("component", "loader")
		return nil
	}
}

// WithExtractor registers or replaces the extractor for ext (".pdf", ".txt", ...).
func WithExtractor(ext string, extractor Extractor) Option {
	return func(l *FileLoader) error {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: extension %q must start with a dot", core.ErrInvalidConfig, ext)
		}
		l.extractors[strings.ToLower(ext)] = extractor
		return nil
	}
}

// NewFileLoader creates a loader for PDF, DOCX, XLSX, Markdown and plain text.
func NewFileLoader(opts ...Option) (*FileLoader, error) {
	l := &FileLoader{
		extractors: map[string]Extractor{
			".pdf":      ExtractPDF,
			".docx":     ExtractDOCX,
			".xlsx":     ExtractXLSX,
			".md":       ExtractMarkdown,
			".markdown": ExtractMarkdown,
			".txt":      ExtractText,
		},
		logger: slog.Default().With("component", "loader"),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Supported lists the handled extensions in sorted order.
func (l *FileLoader) Supported() []string {
	exts := make([]string, 0, len(l.extractors))
	for ext := range l.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load reads and extracts in. Every failure matches core.ErrLoad.
func (l *FileLoader) Load(ctx context.Context, in Input) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, core.StageError(core.ErrLoad, err)
	}

	source := in.Source()
	extract, ok := l.extractors[in.ext()]
	if !ok {
		return core.Document{}, fmt.Errorf("%w: %w: %q", core.ErrLoad, ErrUnsupportedFormat, in.ext())
	}

	data := in.Data
	if data == nil {
		if in.Path == "" {
			return core.Document{}, fmt.Errorf("%w: %w", core.ErrLoad, ErrNoInput)
		}
		var err error
		data, err = os.ReadFile(in.Path)
		if err != nil {
			return core.Document{}, fmt.Errorf("%w: %w", core.ErrLoad, err)
		}
	}

	text, err := extract(data)
	if err != nil {
		l.logger.Warn("text extraction failed", "source", source, "err", err)
		return core.Document{}, fmt.Errorf("%w: %w", core.ErrLoad, err)
	}

	l.logger.Debug("loaded document", "source", source, "bytes", len(data), "characters", len([]rune(text)))
	return core.Document{Source: source, Text: text}, nil
}
