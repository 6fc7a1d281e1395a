package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SlideRenderer converts a document into one rasterized PNG per slide. Office
// formats are first converted to PDF through LibreOffice; PDF pages are then
// rasterized with poppler at an upscale factor for OCR legibility.
type SlideRenderer struct {
	outputDir string
	scale     int
}

const baseRenderDPI = 72

func NewSlideRenderer(outputDir string, scale int) (*SlideRenderer, error) {
	if scale <= 0 {
		scale = 2
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create render output dir: %w", err)
	}
	return &SlideRenderer{outputDir: outputDir, scale: scale}, nil
}

// RenderSlides returns the rendered image paths in document order, one per
// slide or page. Intermediate conversion artifacts are removed on every path.
func (r *SlideRenderer) RenderSlides(ctx context.Context, docPath string) ([]string, error) {
	if err := checkExists(docPath); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))

	if strings.EqualFold(filepath.Ext(docPath), ".pdf") {
		return r.rasterize(ctx, docPath, base)
	}

	tmpDir, err := os.MkdirTemp("", "slide-render-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath, err := r.convertToPDF(ctx, docPath, tmpDir)
	if err != nil {
		return nil, err
	}

	return r.rasterize(ctx, pdfPath, base)
}

// convertToPDF shells out to LibreOffice. Conversion failure is fatal for the
// document and not retried.
func (r *SlideRenderer) convertToPDF(ctx context.Context, docPath, outDir string) (string, error) {
	if !hasBinary("soffice") {
		return "", fmt.Errorf("%w: soffice not found, install LibreOffice", ErrRenderConversionFailed)
	}

	cmd := exec.CommandContext(ctx, "soffice",
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		docPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: soffice: %v, stderr: %s", ErrRenderConversionFailed, err, stderr.String())
	}

	base := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("%w: soffice produced no output for %s", ErrRenderConversionFailed, docPath)
	}
	return pdfPath, nil
}

var renderedPageRe = regexp.MustCompile(`-(\d+)\.png$`)

// rasterize renders every PDF page to a PNG in the output directory.
func (r *SlideRenderer) rasterize(ctx context.Context, pdfPath, docBase string) ([]string, error) {
	if !hasBinary("pdftoppm") {
		return nil, fmt.Errorf("%w: pdftoppm not found, install poppler-utils", ErrRenderConversionFailed)
	}

	prefix := filepath.Join(r.outputDir, docBase+"_slide")

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(baseRenderDPI*r.scale),
		pdfPath,
		prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: pdftoppm: %v, stderr: %s", ErrRenderConversionFailed, err, stderr.String())
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no pages rendered from %s", ErrRenderConversionFailed, pdfPath)
	}

	sort.Slice(matches, func(i, j int) bool {
		return renderedPageNumber(matches[i]) < renderedPageNumber(matches[j])
	})
	return matches, nil
}

func renderedPageNumber(path string) int {
	m := renderedPageRe.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func hasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
