package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"slide-search-platform/internal/config"
	"slide-search-platform/internal/logger"
)

// OCRClient sends rendered slide images to the OCR service and normalizes the
// engine's token-level output into a single text plus confidence score.
type OCRClient struct {
	baseURL             string
	languages           []string
	preprocess          PreprocessOptions
	confidenceThreshold float64
	httpClient          *http.Client
}

// PreprocessOptions toggles the image preprocessing steps applied before the
// image is submitted to the engine.
type PreprocessOptions struct {
	Upscale  bool
	Denoise  bool
	Binarize bool
}

// OCRResult is the processed outcome for one image. Confidence is the mean of
// per-token confidences scaled to [0,1]; 0.0 when nothing was recognized.
type OCRResult struct {
	Text       string
	Confidence float64
	Words      []OCRWord
}

// OCRWord is one recognized token with its confidence and bounding box.
type OCRWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

type ocrResponse struct {
	Success bool      `json:"success"`
	Text    string    `json:"text"`
	Words   []OCRWord `json:"words"`
	Error   string    `json:"error,omitempty"`
}

func NewOCRClient(cfg *config.Config) *OCRClient {
	baseURL := cfg.OCRServiceURL
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}

	return &OCRClient{
		baseURL:             baseURL,
		languages:           cfg.OCRLanguages,
		confidenceThreshold: cfg.OCRConfidenceThreshold,
		preprocess: PreprocessOptions{
			Upscale:  cfg.OCRUpscale,
			Denoise:  cfg.OCRDenoise,
			Binarize: cfg.OCRBinarize,
		},
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.OCRTimeout) * time.Second, // OCR can take time
		},
	}
}

// ProcessImage runs preprocessing and OCR on one rendered slide image.
// An empty zero-confidence result is a valid low-quality outcome, not an error.
func (c *OCRClient) ProcessImage(ctx context.Context, imagePath string) (*OCRResult, error) {
	if err := checkExists(imagePath); err != nil {
		return nil, err
	}

	img, err := loadImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRFailure, err)
	}

	processed := PreprocessImage(img, c.preprocess)

	var buf bytes.Buffer
	if err := png.Encode(&buf, processed); err != nil {
		return nil, fmt.Errorf("%w: failed to encode preprocessed image: %v", ErrOCRFailure, err)
	}

	resp, err := c.recognize(ctx, imagePath, buf.Bytes())
	if err != nil {
		return nil, err
	}

	result := &OCRResult{
		Text:       resp.Text,
		Confidence: meanConfidence(resp.Words),
		Words:      resp.Words,
	}
	if result.Confidence < c.confidenceThreshold {
		logger.Warn("OCR confidence below threshold",
			"image", imagePath,
			"confidence", result.Confidence,
			"threshold", c.confidenceThreshold,
		)
	}
	return result, nil
}

func (c *OCRClient) recognize(ctx context.Context, filename string, imageData []byte) (*ocrResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create form file: %v", ErrOCRFailure, err)
	}
	if _, err := fileWriter.Write(imageData); err != nil {
		return nil, fmt.Errorf("%w: failed to write image data: %v", ErrOCRFailure, err)
	}

	writer.WriteField("languages", strings.Join(c.languages, "+"))
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr/recognize", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create OCR request: %v", ErrOCRFailure, err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrOCRFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrOCRFailure, resp.StatusCode, string(body))
	}

	var ocrResp ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrOCRFailure, err)
	}
	if !ocrResp.Success {
		return nil, fmt.Errorf("%w: %s", ErrOCRFailure, ocrResp.Error)
	}

	return &ocrResp, nil
}

// meanConfidence averages per-token confidences, scaled from the engine's
// 0-100 range to [0,1].
func meanConfidence(words []OCRWord) float64 {
	if len(words) == 0 {
		return 0.0
	}
	total := 0.0
	for _, w := range words {
		total += w.Confidence
	}
	return total / float64(len(words)) / 100.0
}
