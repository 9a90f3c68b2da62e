package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"doc-parser/internal/logger"
	"doc-parser/internal/models"

	"github.com/sirupsen/logrus"
)

const DefaultHuggingFaceURL = "https://api-inference.huggingface.co"

type HuggingFaceOptions struct {
	Token      string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HuggingFace calls the hosted inference API for a zero-shot
// classification model such as facebook/bart-large-mnli.
type HuggingFace struct {
	token   string
	model   string
	baseURL string
	timeout time.Duration
	httpc   *http.Client
}

func NewHuggingFace(opts HuggingFaceOptions) *HuggingFace {
	h := &HuggingFace{
		token:   opts.Token,
		model:   opts.Model,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		httpc:   opts.HTTPClient,
	}
	if h.model == "" {
		h.model = "facebook/bart-large-mnli"
	}
	if h.baseURL == "" {
		h.baseURL = DefaultHuggingFaceURL
	}
	if h.timeout <= 0 {
		h.timeout = 60 * time.Second
	}
	if h.httpc == nil {
		h.httpc = &http.Client{}
	}
	return h
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type hfResponse struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

func (h *HuggingFace) Classify(ctx context.Context, text string, labels []string) (models.Classification, error) {
	if err := checkInput(text, labels); err != nil {
		return models.Classification{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	payload, err := json.Marshal(hfRequest{
		Inputs:     text,
		Parameters: hfParameters{CandidateLabels: labels},
	})
	if err != nil {
		return models.Classification{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/models/"+h.model, bytes.NewReader(payload))
	if err != nil {
		return models.Classification{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	start := time.Now()
	resp, err := h.httpc.Do(req)
	if err != nil {
		return models.Classification{}, fmt.Errorf("huggingface: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Classification{}, fmt.Errorf("huggingface: read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return models.Classification{}, fmt.Errorf("huggingface: status %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(raw)))
	}

	out, err := decodeHF(raw)
	if err != nil {
		return models.Classification{}, err
	}
	if len(out.Labels) != len(out.Scores) {
		return models.Classification{}, fmt.Errorf("%w: %d labels, %d scores", ErrBadResponse, len(out.Labels), len(out.Scores))
	}

	scores := make(map[string]float64, len(out.Labels))
	for i, l := range out.Labels {
		scores[l] = out.Scores[i]
	}

	logger.WithFields(logrus.Fields{
		"model":     h.model,
		"elapsedMs": time.Since(start).Milliseconds(),
	}).Debug("Zero-shot classification finished")

	return build(labels, scores)
}

// decodeHF accepts both the single object and the one-element list the
// inference API may return.
func decodeHF(raw []byte) (hfResponse, error) {
	var out hfResponse
	if err := json.Unmarshal(raw, &out); err == nil {
		return out, nil
	}
	var list []hfResponse
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return hfResponse{}, fmt.Errorf("%w: %s", ErrBadResponse, strings.TrimSpace(string(raw)))
	}
	return list[0], nil
}
