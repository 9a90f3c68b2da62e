// Package localparse is an offline parser backend. It reads PDF text
// directly, renders pages with MuPDF, falls back to Tesseract OCR for
// scanned pages and images, and reads slide text from pptx files.
package localparse

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"doc-parser/internal/logger"
	"doc-parser/internal/models"
	"doc-parser/internal/services"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"
	"github.com/unidoc/unioffice/presentation"
)

const (
	// Pages with less direct text than this are OCR'd.
	minDirectText = 50
	maxRenderSide = 2000
	jpegQuality   = 85
)

type Options struct {
	TesseractLang string
}

type Parser struct {
	lang      string
	sanitizer *services.TextSanitizer
}

func New(opts Options) *Parser {
	lang := opts.TesseractLang
	if lang == "" {
		lang = "eng"
	}
	return &Parser{lang: lang, sanitizer: services.NewTextSanitizer()}
}

func (p *Parser) ParseMarkdownPages(ctx context.Context, path string) ([]string, error) {
	switch ext := services.ExtensionOf(path); ext {
	case "pdf":
		return p.pdfPages(ctx, path)
	case "pptx":
		return p.slidePages(path)
	case "png", "jpg", "jpeg":
		text, err := p.ocrFile(path)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	default:
		return nil, fmt.Errorf("local parser: unsupported file type %q", ext)
	}
}

// ParseImages renders each page (or the image itself) as a full-page
// screenshot and OCRs it. Embedded object images are not extracted.
func (p *Parser) ParseImages(ctx context.Context, path string, opts models.ImageOptions) (models.ParsedImages, error) {
	var rendered []image.Image

	switch ext := services.ExtensionOf(path); ext {
	case "pdf":
		doc, err := fitz.New(path)
		if err != nil {
			return models.ParsedImages{}, fmt.Errorf("open pdf: %w", err)
		}
		defer doc.Close()
		for i := 0; i < doc.NumPage(); i++ {
			if err := ctx.Err(); err != nil {
				return models.ParsedImages{}, err
			}
			img, err := doc.Image(i)
			if err != nil {
				return models.ParsedImages{}, fmt.Errorf("render page %d: %w", i+1, err)
			}
			rendered = append(rendered, img)
		}
	case "png", "jpg", "jpeg":
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return models.ParsedImages{}, fmt.Errorf("decode image: %w", err)
		}
		rendered = append(rendered, img)
	default:
		return models.ParsedImages{}, fmt.Errorf("local parser: cannot render %q", ext)
	}

	out := models.ParsedImages{}
	for i, img := range rendered {
		fitted := imaging.Fit(img, maxRenderSide, maxRenderSide, imaging.Lanczos)
		bounds := fitted.Bounds()
		name := fmt.Sprintf("page_%d.jpg", i+1)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
			return models.ParsedImages{}, fmt.Errorf("encode %s: %w", name, err)
		}

		text, err := p.ocrImage(fitted)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"page":  i + 1,
				"error": err.Error(),
			}).Warn("OCR failed for page")
		}

		pageImage := models.PageImage{
			Name:   name,
			Type:   models.ScreenshotImageType,
			Width:  float64(bounds.Dx()),
			Height: float64(bounds.Dy()),
		}
		out.Pages = append(out.Pages, models.PageRecord{
			Text:     text,
			Markdown: text,
			Images:   []models.PageImage{pageImage},
		}.WithDefaults())

		if opts.IncludeScreenshots {
			out.Images = append(out.Images, models.ExtractedImage{
				Name:        name,
				Data:        buf.Bytes(),
				Description: fmt.Sprintf("Page screenshot %s (%dx%d)", name, bounds.Dx(), bounds.Dy()),
			})
		}
	}

	logger.WithFields(logrus.Fields{
		"file":   filepath.Base(path),
		"pages":  len(out.Pages),
		"images": len(out.Images),
	}).Info("Local image extraction finished")

	return out, nil
}

// pdfPages prefers the text layer and OCRs only pages that have almost
// none, then drops header/footer lines repeated across pages.
func (p *Parser) pdfPages(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var (
		pages    = make([]string, reader.NumPage())
		scanned  []int
		rendered *fitz.Document
	)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			scanned = append(scanned, i-1)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"page":  i,
				"error": err.Error(),
			}).Warn("Failed to extract text from page")
		}
		text = p.sanitizer.SanitizeText(text)
		if len(text) < minDirectText {
			scanned = append(scanned, i-1)
		}
		pages[i-1] = text
	}

	if len(scanned) > 0 {
		rendered, err = fitz.New(path)
		if err != nil {
			return nil, fmt.Errorf("open pdf for OCR: %w", err)
		}
		defer rendered.Close()

		for _, idx := range scanned {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			img, err := rendered.Image(idx)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"page":  idx + 1,
					"error": err.Error(),
				}).Warn("Failed to render page for OCR")
				continue
			}
			text, err := p.ocrImage(img)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"page":  idx + 1,
					"error": err.Error(),
				}).Warn("OCR failed for page")
				continue
			}
			if len(text) > len(pages[idx]) {
				pages[idx] = text
			}
		}
	}

	pages = services.DropRepeatedLines(pages)

	logger.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"pages":    len(pages),
		"ocrPages": len(scanned),
	}).Info("Local PDF parse finished")

	return pages, nil
}

func (p *Parser) slidePages(path string) ([]string, error) {
	deck, err := presentation.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}

	var pages []string
	for _, slide := range deck.Slides() {
		var b strings.Builder
		for _, ph := range slide.PlaceHolders() {
			sp := ph.X()
			if sp == nil || sp.TxBody == nil {
				continue
			}
			for _, para := range sp.TxBody.P {
				var line strings.Builder
				for _, run := range para.EG_TextRun {
					if run.R != nil {
						line.WriteString(run.R.T)
					}
				}
				if s := strings.TrimSpace(line.String()); s != "" {
					b.WriteString(s)
					b.WriteString("\n")
				}
			}
		}
		pages = append(pages, p.sanitizer.SanitizeText(b.String()))
	}
	return pages, nil
}

func (p *Parser) ocrFile(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return p.ocrImage(img)
}

// psmModes are tried in order until one yields enough text.
var psmModes = []gosseract.PageSegMode{
	gosseract.PSM_AUTO_OSD,
	gosseract.PSM_AUTO,
	gosseract.PSM_SINGLE_BLOCK,
}

// ocrImage grayscales and sharpens the image before OCR.
func (p *Parser) ocrImage(img image.Image) (string, error) {
	prepared := imaging.Fit(img, maxRenderSide, maxRenderSide, imaging.Lanczos)
	prepared = imaging.Grayscale(prepared)
	prepared = imaging.AdjustContrast(prepared, 20)
	prepared = imaging.Sharpen(prepared, 1)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(p.lang); err != nil {
		return "", fmt.Errorf("tesseract language %q: %w", p.lang, err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}

	var best string
	for _, mode := range psmModes {
		if err := client.SetPageSegMode(mode); err != nil {
			continue
		}
		text, err := client.Text()
		if err != nil {
			logger.WithFields(logrus.Fields{
				"psm":   int(mode),
				"error": err.Error(),
			}).Debug("OCR mode failed, trying next")
			continue
		}
		text = p.sanitizer.SanitizeText(text)
		if len(text) >= minDirectText {
			return text, nil
		}
		if len(text) > len(best) {
			best = text
		}
	}
	return best, nil
}
