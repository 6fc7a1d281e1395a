package services

import "errors"

// Sentinel errors for the ingestion and retrieval pipeline. Callers match them
// with errors.Is; wrapped variants carry the document id, slide number or file
// path needed to locate the failure.
var (
	// ErrFileNotFound indicates the input document or image does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFormat indicates no registered parser handles the file extension.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrRenderConversionFailed indicates the document-to-image conversion
	// service failed. Fatal for the document, not retried.
	ErrRenderConversionFailed = errors.New("render conversion failed")

	// ErrOCRFailure wraps an OCR engine error. A zero-confidence empty result
	// is not a failure.
	ErrOCRFailure = errors.New("ocr processing failed")

	// ErrDimensionMismatch indicates two vectors of unequal dimension were compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrTopicExtractionFailed indicates the LLM call for topic extraction
	// failed for one slide.
	ErrTopicExtractionFailed = errors.New("topic extraction failed")
)
