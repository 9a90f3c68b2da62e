// Package classifier labels text against a fixed set of candidate labels
// using a hosted zero-shot model.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"doc-parser/internal/config"
	"doc-parser/internal/models"
)

var (
	ErrEmptyText   = errors.New("text is empty")
	ErrNoLabels    = errors.New("no candidate labels")
	ErrBadResponse = errors.New("classifier returned an unusable response")
)

// Classifier scores text against labels. Scores are keyed by label.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (models.Classification, error)
}

// New picks the backend named by cfg.Provider.
func New(cfg config.ClassifierConfig) (Classifier, error) {
	switch cfg.Provider {
	case config.ClassifierHuggingFace, "":
		return NewHuggingFace(HuggingFaceOptions{
			Token:   cfg.HFToken,
			Model:   cfg.HFModel,
			BaseURL: cfg.HFBaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case config.ClassifierOpenAI:
		return NewOpenAI(OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// build turns raw per-label scores into a Classification. Labels missing
// from raw score zero; ties go to the earlier candidate label.
func build(labels []string, raw map[string]float64) (models.Classification, error) {
	if len(raw) == 0 {
		return models.Classification{}, ErrBadResponse
	}

	scores := make(map[string]float64, len(labels))
	for _, l := range labels {
		scores[l] = raw[l]
	}

	order := make([]string, len(labels))
	copy(order, labels)
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })

	return models.Classification{
		Label:      order[0],
		Confidence: scores[order[0]],
		Scores:     scores,
	}, nil
}

func checkInput(text string, labels []string) error {
	if text == "" {
		return ErrEmptyText
	}
	if len(labels) == 0 {
		return ErrNoLabels
	}
	return nil
}
