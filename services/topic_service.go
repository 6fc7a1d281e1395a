package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"slide-search-platform/models"
)

// LLMClient is the completion capability used for topic labeling.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SentenceEmbedder embeds sentences for clustering. Distinct from the slide
// text embedder; satisfied by an EmbeddingService configured with the
// sentence model.
type SentenceEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TopicService assigns topic labels with confidence scores to slide text.
//
// Short texts go straight to the LLM. Longer texts are clustered first so one
// LLM call is spent per topic instead of per sentence.
type TopicService struct {
	llm       LLMClient
	embedder  SentenceEmbedder
	maxTopics int
	threshold float64
}

func NewTopicService(llm LLMClient, embedder SentenceEmbedder, maxTopics int, threshold float64) *TopicService {
	if maxTopics <= 0 {
		maxTopics = 5
	}
	return &TopicService{
		llm:       llm,
		embedder:  embedder,
		maxTopics: maxTopics,
		threshold: threshold,
	}
}

// ExtractTopics returns up to maxTopics topics ordered by descending
// confidence, each at or above the confidence threshold.
func (s *TopicService) ExtractTopics(ctx context.Context, text string) ([]models.Topic, error) {
	sentences := SplitSentences(text)

	var topics []models.Topic
	var err error
	if len(sentences) < s.maxTopics {
		topics, err = s.extractDirect(ctx, text)
	} else {
		topics, err = s.extractClustered(ctx, sentences)
	}
	if err != nil {
		return nil, err
	}

	topics = s.filterByThreshold(topics)
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Confidence > topics[j].Confidence })
	if len(topics) > s.maxTopics {
		topics = topics[:s.maxTopics]
	}
	return topics, nil
}

// extractDirect asks the LLM for all topics in one call.
func (s *TopicService) extractDirect(ctx context.Context, text string) ([]models.Topic, error) {
	prompt := fmt.Sprintf(
		"Extract up to %d main topics from the following text.\n"+
			"Answer with one topic per line in the exact form `label: confidence`,\n"+
			"where confidence is a number between 0 and 1. No other output.\n\nText: %s",
		s.maxTopics, text,
	)

	response, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopicExtractionFailed, err)
	}

	return ParseTopicLines(response), nil
}

// extractClustered embeds sentences, partitions them into maxTopics clusters
// and labels each non-empty cluster with one LLM call. Confidence is a coarse
// evidence-mass heuristic: min(1, clusterSize/5).
func (s *TopicService) extractClustered(ctx context.Context, sentences []string) ([]models.Topic, error) {
	vectors, err := s.embedder.EmbedTexts(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("%w: sentence embedding: %v", ErrTopicExtractionFailed, err)
	}

	assignments := kmeansCluster(vectors, s.maxTopics)

	clusters := make(map[int][]string)
	for i, c := range assignments {
		clusters[c] = append(clusters[c], sentences[i])
	}

	var topics []models.Topic
	for c := 0; c < s.maxTopics; c++ {
		members := clusters[c]
		if len(members) == 0 {
			continue
		}
		label, err := s.labelCluster(ctx, members)
		if err != nil {
			return nil, err
		}
		if label == "" {
			continue
		}
		confidence := float64(len(members)) / 5.0
		if confidence > 1.0 {
			confidence = 1.0
		}
		topics = append(topics, models.Topic{Label: label, Confidence: confidence})
	}
	return topics, nil
}

func (s *TopicService) labelCluster(ctx context.Context, sentences []string) (string, error) {
	prompt := fmt.Sprintf(
		"Generate a concise topic of 1-3 words that represents the following sentences.\n"+
			"Answer with the topic only.\n\n%s",
		strings.Join(sentences, "\n"),
	)

	response, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: cluster labeling: %v", ErrTopicExtractionFailed, err)
	}

	// Models occasionally return more than one line; the label is the first.
	label := strings.TrimSpace(response)
	if i := strings.IndexByte(label, '\n'); i >= 0 {
		label = strings.TrimSpace(label[:i])
	}
	return label, nil
}

func (s *TopicService) filterByThreshold(topics []models.Topic) []models.Topic {
	filtered := topics[:0]
	for _, t := range topics {
		if t.Confidence >= s.threshold {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

var topicLinePrefixRe = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)])\s*`)

// ParseTopicLines parses an LLM response with the grammar `label: confidence`
// per line. Malformed lines are skipped, never fatal; list markers around the
// label are tolerated.
func ParseTopicLines(response string) []models.Topic {
	var topics []models.Topic
	for _, line := range strings.Split(response, "\n") {
		line = topicLinePrefixRe.ReplaceAllString(line, "")
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		label := strings.TrimSpace(line[:idx])
		confidence, err := strconv.ParseFloat(strings.TrimSpace(line[idx+1:]), 64)
		if err != nil || label == "" {
			continue
		}
		if confidence < 0 || confidence > 1 {
			continue
		}
		topics = append(topics, models.Topic{Label: label, Confidence: confidence})
	}
	return topics
}

var sentenceSplitRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// SplitSentences splits text on sentence-terminating punctuation. Text without
// terminators counts as a single sentence.
func SplitSentences(text string) []string {
	matches := sentenceSplitRe.FindAllString(text, -1)
	if len(matches) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			sentences = append(sentences, m)
		}
	}
	return sentences
}
