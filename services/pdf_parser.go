package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts per-page text from PDF documents.
//
// Embedded image extraction is not supported by the underlying reader; pages
// still receive rasterized images through the renderer, so OCR and image
// embedding remain available.
type PDFParser struct{}

func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Extensions() []string {
	return []string{".pdf"}
}

func (p *PDFParser) Parse(filePath string) ([]RawSlide, error) {
	if err := checkExists(filePath); err != nil {
		return nil, err
	}

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", filePath, err)
	}
	defer f.Close()

	pages := reader.NumPage()
	slides := make([]RawSlide, 0, pages)

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)

		var text string
		if !page.V.IsNull() {
			fonts := make(map[string]*pdf.Font)
			extracted, err := page.GetPlainText(fonts)
			if err == nil {
				text = strings.TrimSpace(extracted)
			}
			// Extraction errors on a single page degrade to empty text; the
			// pipeline's OCR fallback recovers it from the rendered page.
		}

		slides = append(slides, RawSlide{
			TextContent: text,
			Layout:      "page",
		})
	}

	return slides, nil
}
