package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"doc-parser/internal/logger"
	"doc-parser/internal/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FallbackImageDescription is used when the parser extracted no images
// from an image upload.
const FallbackImageDescription = "Uploaded image (no images extracted by parser)"

// Parser is the external document-parsing backend.
type Parser interface {
	ParseMarkdownPages(ctx context.Context, path string) ([]string, error)
	ParseImages(ctx context.Context, path string, opts models.ImageOptions) (models.ParsedImages, error)
}

type Dispatcher struct {
	parser    Parser
	imagesDir string
}

func NewDispatcher(parser Parser, imagesDir string) *Dispatcher {
	return &Dispatcher{parser: parser, imagesDir: imagesDir}
}

// Dispatch calls the parser once and routes by extension. Parser errors are
// returned with a stack attached; local filesystem errors wrap
// ErrStorageFailure.
func (d *Dispatcher) Dispatch(ctx context.Context, staged models.StagedFile, ext string) (models.ParseResult, error) {
	if IsImageExtension(ext) {
		return d.dispatchImage(ctx, staged)
	}
	return d.dispatchDocument(ctx, staged)
}

func (d *Dispatcher) dispatchDocument(ctx context.Context, staged models.StagedFile) (models.ParseResult, error) {
	pages, err := d.parser.ParseMarkdownPages(ctx, staged.Path)
	if err != nil {
		return models.ParseResult{}, errors.Wrapf(err, "parse %s", staged.OriginalName)
	}
	if pages == nil {
		pages = []string{}
	}

	logger.WithFields(logrus.Fields{
		"file":  staged.OriginalName,
		"pages": len(pages),
	}).Info("Document parsed to markdown")

	return models.ParseResult{Document: &models.DocumentResult{Pages: pages}}, nil
}

func (d *Dispatcher) dispatchImage(ctx context.Context, staged models.StagedFile) (models.ParseResult, error) {
	parsed, err := d.parser.ParseImages(ctx, staged.Path, models.ImageOptions{
		IncludeScreenshots:  true,
		IncludeObjectImages: false,
	})
	if err != nil {
		return models.ParseResult{}, errors.Wrapf(err, "parse %s", staged.OriginalName)
	}

	images := make([]models.ImageRecord, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		d.saveExtracted(staged, img)
		images = append(images, models.ImageRecord{
			ImageBase64: base64.StdEncoding.EncodeToString(img.Data),
			Description: img.Description,
		})
	}

	if len(images) == 0 {
		raw, err := os.ReadFile(staged.Path)
		if err != nil {
			return models.ParseResult{}, fmt.Errorf("%w: reading staged file: %v", ErrStorageFailure, err)
		}
		images = append(images, models.ImageRecord{
			ImageBase64: base64.StdEncoding.EncodeToString(raw),
			Description: FallbackImageDescription,
		})
		logger.WithFields(logrus.Fields{
			"file": staged.OriginalName,
		}).Warn("Parser returned no images, using the uploaded image")
	}

	pages := make([]models.PageRecord, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		pages = append(pages, p.WithDefaults())
	}

	logger.WithFields(logrus.Fields{
		"file":   staged.OriginalName,
		"images": len(images),
		"pages":  len(pages),
	}).Info("Image parsed")

	return models.ParseResult{Image: &models.ImageResult{Images: images, Pages: pages}}, nil
}

// saveExtracted keeps a copy of an extracted image on disk. Failures are
// logged only; the response carries the bytes anyway.
func (d *Dispatcher) saveExtracted(staged models.StagedFile, img models.ExtractedImage) {
	if d.imagesDir == "" || len(img.Data) == 0 {
		return
	}
	if err := os.MkdirAll(d.imagesDir, 0755); err != nil {
		logger.WithError(err).Warn("Failed to create images directory")
		return
	}

	stem := strings.TrimSuffix(staged.OriginalName, filepath.Ext(staged.OriginalName))
	name := SecureFilename(stem + "_" + img.Name)
	if name == "" {
		return
	}
	if err := os.WriteFile(filepath.Join(d.imagesDir, name), img.Data, 0644); err != nil {
		logger.WithFields(logrus.Fields{
			"file":  name,
			"error": err.Error(),
		}).Warn("Failed to save extracted image")
	}
}
