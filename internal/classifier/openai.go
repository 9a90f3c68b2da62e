package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"doc-parser/internal/logger"
	"doc-parser/internal/models"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const zeroShotPrompt = `You are a zero-shot text classifier. Score the user's text against each candidate label.
Candidate labels: %s
Reply with a JSON object of the form {"scores": {"<label>": <probability>}} using every candidate label exactly once. Probabilities are between 0 and 1 and sum to 1.`

type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAI asks a chat model for per-label probabilities in JSON mode.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAI(opts OpenAIOptions) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	o := &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		timeout: opts.Timeout,
	}
	if o.model == "" {
		o.model = "gpt-4o-mini"
	}
	if o.timeout <= 0 {
		o.timeout = 60 * time.Second
	}
	return o
}

type openAIScores struct {
	Scores map[string]float64 `json:"scores"`
}

func (o *OpenAI) Classify(ctx context.Context, text string, labels []string) (models.Classification, error) {
	if err := checkInput(text, labels); err != nil {
		return models.Classification{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(zeroShotPrompt, strings.Join(quoted, ", ")),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	})
	if err != nil {
		return models.Classification{}, fmt.Errorf("openai classification: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Classification{}, fmt.Errorf("%w: no choices from OpenAI", ErrBadResponse)
	}

	var out openAIScores
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return models.Classification{}, fmt.Errorf("%w: %s", ErrBadResponse, content)
	}

	logger.WithFields(logrus.Fields{
		"model":     o.model,
		"tokens":    resp.Usage.TotalTokens,
		"elapsedMs": time.Since(start).Milliseconds(),
	}).Debug("Zero-shot classification finished")

	return build(labels, normalize(out.Scores))
}

// normalize rescales scores to sum to one. Negative values count as zero.
func normalize(scores map[string]float64) map[string]float64 {
	var total float64
	for k, v := range scores {
		if v < 0 {
			scores[k] = 0
			continue
		}
		total += v
	}
	if total == 0 {
		return scores
	}
	for k, v := range scores {
		scores[k] = v / total
	}
	return scores
}
