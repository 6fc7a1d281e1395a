package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"slide-search-platform/models"
)

// RawSlide is one slide or page as produced by a parser, before OCR fallback
// and rendering are applied.
type RawSlide struct {
	TextContent string
	Images      []models.SlideImage
	Notes       string
	Layout      string
}

// DocumentParser extracts per-slide content from one document format.
// Parsing is a pure read; parsers declare the extensions they support.
type DocumentParser interface {
	Extensions() []string
	Parse(filePath string) ([]RawSlide, error)
}

// ParserRegistry dispatches to a parser by file extension. Parsers are tried
// in registration order, so earlier registrations take preference for a
// contested extension.
type ParserRegistry struct {
	parsers []DocumentParser
	byExt   map[string]DocumentParser
}

func NewParserRegistry(parsers ...DocumentParser) *ParserRegistry {
	r := &ParserRegistry{byExt: make(map[string]DocumentParser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

func (r *ParserRegistry) Register(p DocumentParser) {
	r.parsers = append(r.parsers, p)
	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		if _, exists := r.byExt[ext]; !exists {
			r.byExt[ext] = p
		}
	}
}

// ForFile returns the parser for the file's extension.
func (r *ParserRegistry) ForFile(filePath string) (DocumentParser, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if p, ok := r.byExt[ext]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// checkExists maps a missing input file to ErrFileNotFound.
func checkExists(filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
		}
		return err
	}
	return nil
}
