package models

import "fmt"

// SlideRecord is the normalized representation of one slide or page after
// ingestion. It is the unit of persistence: embeddings and topics are attached
// to it before it is written to the slide store.
type SlideRecord struct {
	DocumentID        string        `bson:"document_id" json:"document_id"`
	SlideNumber       int           `bson:"slide_number" json:"slide_number"`
	TextContent       string        `bson:"text_content" json:"text_content"`
	Images            []SlideImage  `bson:"images,omitempty" json:"images,omitempty"`
	Notes             string        `bson:"notes,omitempty" json:"notes,omitempty"`
	Layout            string        `bson:"layout,omitempty" json:"layout,omitempty"`
	RenderedImagePath string        `bson:"rendered_image_path,omitempty" json:"rendered_image_path,omitempty"`
	Metadata          SlideMetadata `bson:"metadata" json:"metadata"`
	Topics            []Topic       `bson:"topics,omitempty" json:"topics,omitempty"`
	TextVector        []float32     `bson:"text_vector,omitempty" json:"-"`
	ImageVector       []float32     `bson:"image_vector,omitempty" json:"-"`
}

// SlideImage is an embedded image blob with its position on the slide.
// Insertion order matches visual order.
type SlideImage struct {
	Data   []byte `bson:"data,omitempty" json:"-"`
	Format string `bson:"format,omitempty" json:"format,omitempty"`
	Left   int64  `bson:"left" json:"left"`
	Top    int64  `bson:"top" json:"top"`
	Width  int64  `bson:"width" json:"width"`
	Height int64  `bson:"height" json:"height"`
}

// SlideMetadata carries per-slide processing metadata.
// OCRConfidence is 1.0 when structured text extraction succeeded and OCR was
// never invoked; otherwise it is the OCR engine's reported score in [0,1].
type SlideMetadata struct {
	OCRConfidence float64 `bson:"ocr_confidence" json:"ocr_confidence"`
	OCRApplied    bool    `bson:"ocr_applied" json:"ocr_applied"`
}

// Topic is a short descriptive label with a confidence score in [0,1].
// A slide's topics are ordered by descending confidence.
type Topic struct {
	Label      string  `bson:"label" json:"label"`
	Confidence float64 `bson:"confidence" json:"confidence"`
}

// SlideID is the store identifier for the slide, unique per document and
// slide number.
func (s *SlideRecord) SlideID() string {
	return fmt.Sprintf("%s:%d", s.DocumentID, s.SlideNumber)
}

// TopicLabels flattens topics into the label list persisted in the store payload.
func TopicLabels(topics []Topic) []string {
	labels := make([]string, 0, len(topics))
	for _, t := range topics {
		labels = append(labels, t.Label)
	}
	return labels
}

// StorePayload returns the payload fields exposed to the slide store.
func (s *SlideRecord) StorePayload() map[string]any {
	return map[string]any{
		"slideNumber":    s.SlideNumber,
		"content":        s.TextContent,
		"presentationId": s.DocumentID,
		"imageUrl":       s.RenderedImagePath,
		"topics":         TopicLabels(s.Topics),
	}
}
