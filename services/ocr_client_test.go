package services

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"slide-search-platform/internal/config"
)

func writeTestImage(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if x > 3 {
				c = color.RGBA{A: 255}
			}
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, "slide.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode image: %v", err)
	}
	return path
}

func newOCRTestClient(t *testing.T, handler http.HandlerFunc) *OCRClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		OCRServiceURL: server.URL,
		OCRLanguages:  []string{"eng", "deu"},
		OCRTimeout:    10,
		OCRUpscale:    true,
		OCRDenoise:    true,
		OCRBinarize:   true,
	}
	return NewOCRClient(cfg)
}

func TestOCRProcessImage(t *testing.T) {
	imagePath := writeTestImage(t, t.TempDir())

	client := newOCRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr/recognize" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("languages"); got != "eng+deu" {
			t.Errorf("languages field: %q", got)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("image field missing: %v", err)
		}
		json.NewEncoder(w).Encode(ocrResponse{
			Success: true,
			Text:    "recovered text",
			Words: []OCRWord{
				{Text: "recovered", Confidence: 90},
				{Text: "text", Confidence: 70},
			},
		})
	})

	result, err := client.ProcessImage(context.Background(), imagePath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Text != "recovered text" {
		t.Fatalf("text: %q", result.Text)
	}
	if math.Abs(result.Confidence-0.8) > 1e-9 {
		t.Fatalf("confidence should be mean/100 = 0.8, got %f", result.Confidence)
	}
}

func TestOCREmptyResultIsNotAnError(t *testing.T) {
	imagePath := writeTestImage(t, t.TempDir())

	client := newOCRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ocrResponse{Success: true, Text: "", Words: nil})
	})

	result, err := client.ProcessImage(context.Background(), imagePath)
	if err != nil {
		t.Fatalf("empty recognition must not fail: %v", err)
	}
	if result.Text != "" || result.Confidence != 0.0 {
		t.Fatalf("expected empty zero-confidence result: %+v", result)
	}
}

func TestOCREngineErrorWrapsSentinel(t *testing.T) {
	imagePath := writeTestImage(t, t.TempDir())

	client := newOCRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ocrResponse{Success: false, Error: "tesseract crashed"})
	})

	_, err := client.ProcessImage(context.Background(), imagePath)
	if !errors.Is(err, ErrOCRFailure) {
		t.Fatalf("expected ErrOCRFailure, got %v", err)
	}
}

func TestOCRHTTPErrorWrapsSentinel(t *testing.T) {
	imagePath := writeTestImage(t, t.TempDir())

	client := newOCRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ProcessImage(context.Background(), imagePath)
	if !errors.Is(err, ErrOCRFailure) {
		t.Fatalf("expected ErrOCRFailure, got %v", err)
	}
}

func TestOCRMissingImage(t *testing.T) {
	client := newOCRTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.ProcessImage(context.Background(), "/nonexistent/slide.png")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestPreprocessImagePipeline(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				src.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
			} else {
				src.Set(x, y, color.RGBA{R: 10, G: 10, B: 10, A: 255})
			}
		}
	}

	out := PreprocessImage(src, PreprocessOptions{Upscale: true, Denoise: false, Binarize: true})
	bounds := out.Bounds()
	if bounds.Dx() != 8 || bounds.Dy() != 8 {
		t.Fatalf("upscale should double dimensions, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// binarization leaves only pure black or pure white
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.GrayModel.Convert(out.At(x, y)).(color.Gray)
			if gray.Y != 0 && gray.Y != 255 {
				t.Fatalf("pixel (%d,%d) not binarized: %d", x, y, gray.Y)
			}
		}
	}
}
