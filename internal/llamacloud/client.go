// Package llamacloud is a thin client for the LlamaCloud parsing REST API:
// upload a file, poll the job, then fetch the JSON result and any page
// images.
package llamacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"doc-parser/internal/logger"
	"doc-parser/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://api.cloud.llamaindex.ai"

	statusPending        = "PENDING"
	statusSuccess        = "SUCCESS"
	statusPartialSuccess = "PARTIAL_SUCCESS"
	statusError          = "ERROR"
	statusCancelled      = "CANCELLED"

	ScreenshotImageType = models.ScreenshotImageType
)

type Options struct {
	APIKey       string
	BaseURL      string
	Language     string
	NumWorkers   int
	Timeout      time.Duration
	PollInterval time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	apiKey       string
	baseURL      string
	language     string
	numWorkers   int
	timeout      time.Duration
	pollInterval time.Duration
	httpc        *http.Client
}

func New(opts Options) *Client {
	c := &Client{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		language:     opts.Language,
		numWorkers:   opts.NumWorkers,
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
		httpc:        opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.language == "" {
		c.language = "en"
	}
	if c.numWorkers < 1 {
		c.numWorkers = 1
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Minute
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

type jobResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type jsonResult struct {
	Pages []apiPage `json:"pages"`
}

type apiImage struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// apiPage mirrors the loosely-typed page object; every field may be
// missing.
type apiPage struct {
	Page           int              `json:"page"`
	Text           *string          `json:"text"`
	MD             *string          `json:"md"`
	Images         []apiImage       `json:"images"`
	Layout         []map[string]any `json:"layout"`
	StructuredData json.RawMessage  `json:"structuredData"`
}

func (p apiPage) record() models.PageRecord {
	rec := models.PageRecord{}
	if p.Text != nil {
		rec.Text = *p.Text
	}
	if p.MD != nil {
		rec.Markdown = *p.MD
	}
	for _, img := range p.Images {
		rec.Images = append(rec.Images, models.PageImage{
			Name:   img.Name,
			Type:   img.Type,
			Width:  img.Width,
			Height: img.Height,
			X:      img.X,
			Y:      img.Y,
		})
	}
	rec.Layout = p.Layout
	rec.StructuredData = decodeStructured(p.StructuredData)
	return rec.WithDefaults()
}

func decodeStructured(raw json.RawMessage) map[string]any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return map[string]any{"data": v}
}

// ParseMarkdownPages returns one markdown string per page, in page order.
func (c *Client) ParseMarkdownPages(ctx context.Context, path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jobID, err := c.upload(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, jobID); err != nil {
		return nil, err
	}

	result, err := c.jsonResult(ctx, jobID)
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, len(result.Pages))
	for _, p := range result.Pages {
		pages = append(pages, p.record().Markdown)
	}
	return pages, nil
}

// ParseImages returns per-page records plus the page images selected by
// opts, downloaded with at most NumWorkers concurrent requests.
func (c *Client) ParseImages(ctx context.Context, path string, opts models.ImageOptions) (models.ParsedImages, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	extra := map[string]string{}
	if opts.IncludeScreenshots {
		extra["take_screenshot"] = "true"
	}
	if !opts.IncludeObjectImages {
		extra["disable_image_extraction"] = "true"
	}

	jobID, err := c.upload(ctx, path, extra)
	if err != nil {
		return models.ParsedImages{}, err
	}
	if err := c.wait(ctx, jobID); err != nil {
		return models.ParsedImages{}, err
	}

	result, err := c.jsonResult(ctx, jobID)
	if err != nil {
		return models.ParsedImages{}, err
	}

	parsed := models.ParsedImages{Pages: make([]models.PageRecord, 0, len(result.Pages))}
	var wanted []apiImage
	for _, p := range result.Pages {
		parsed.Pages = append(parsed.Pages, p.record())
		for _, img := range p.Images {
			if wantImage(img, opts) {
				wanted = append(wanted, img)
			}
		}
	}

	images := make([]models.ExtractedImage, len(wanted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.numWorkers)
	for i, img := range wanted {
		i, img := i, img
		g.Go(func() error {
			data, err := c.image(gctx, jobID, img.Name)
			if err != nil {
				return err
			}
			images[i] = models.ExtractedImage{
				Name:        img.Name,
				Data:        data,
				Description: describe(img),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.ParsedImages{}, err
	}
	parsed.Images = images

	logger.WithFields(logrus.Fields{
		"jobId":  jobID,
		"pages":  len(parsed.Pages),
		"images": len(parsed.Images),
	}).Info("LlamaCloud image extraction finished")

	return parsed, nil
}

func wantImage(img apiImage, opts models.ImageOptions) bool {
	if img.Type == ScreenshotImageType {
		return opts.IncludeScreenshots
	}
	return opts.IncludeObjectImages
}

func describe(img apiImage) string {
	kind := "Image"
	if img.Type == ScreenshotImageType {
		kind = "Page screenshot"
	}
	return fmt.Sprintf("%s %s (%.0fx%.0f)", kind, img.Name, img.Width, img.Height)
}

func (c *Client) upload(ctx context.Context, path string, extra map[string]string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	fields := map[string]string{"language": c.language}
	for k, v := range extra {
		fields[k] = v
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("build multipart: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/parsing/upload", &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var job jobResponse
	if err := c.doJSON(req, "upload", &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("llamacloud upload: response has no job id")
	}

	logger.WithFields(logrus.Fields{
		"jobId": job.ID,
		"file":  filepath.Base(path),
	}).Info("LlamaCloud job created")
	return job.ID, nil
}

// wait polls the job until it leaves PENDING. It never resubmits.
func (c *Client) wait(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/parsing/job/"+url.PathEscape(jobID), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		var job jobResponse
		if err := c.doJSON(req, "job status", &job); err != nil {
			return err
		}

		switch job.Status {
		case statusPending:
		case statusSuccess, statusPartialSuccess:
			return nil
		case statusError, statusCancelled:
			msg := job.ErrorMessage
			if msg == "" {
				msg = job.ErrorCode
			}
			return fmt.Errorf("llamacloud job %s %s: %s", jobID, strings.ToLower(job.Status), msg)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("llamacloud job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) jsonResult(ctx context.Context, jobID string) (jsonResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/parsing/job/"+url.PathEscape(jobID)+"/result/json", nil)
	if err != nil {
		return jsonResult{}, fmt.Errorf("build request: %w", err)
	}
	var out jsonResult
	if err := c.doJSON(req, "json result", &out); err != nil {
		return jsonResult{}, err
	}
	return out, nil
}

func (c *Client) image(ctx context.Context, jobID, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/parsing/job/"+url.PathEscape(jobID)+"/result/image/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req, "image "+name)
}

func (c *Client) doJSON(req *http.Request, op string, out interface{}) error {
	raw, err := c.do(req, op)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("llamacloud %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llamacloud %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llamacloud %s: read body: %w", op, err)
	}

	logger.WithFields(logrus.Fields{
		"op":        op,
		"status":    resp.StatusCode,
		"bytes":     len(raw),
		"elapsedMs": time.Since(start).Milliseconds(),
	}).Debug("LlamaCloud response")

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("llamacloud %s: status %d %s: %s",
			op, resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
