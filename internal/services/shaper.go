package services

import (
	"strings"

	"doc-parser/internal/models"
)

const (
	ImageParsedMessage    = "Image parsed successfully"
	DocumentParsedMessage = "Document parsed successfully"
)

// Shape converts a parse result into its wire response. Collections are
// never nil in the output.
func Shape(result models.ParseResult) interface{} {
	if result.Image != nil {
		return ShapeImage(*result.Image)
	}
	if result.Document != nil {
		return ShapeDocument(*result.Document)
	}
	return ShapeDocument(models.DocumentResult{})
}

func ShapeImage(img models.ImageResult) models.ImageUploadResponse {
	images := make([]models.ImageRecord, len(img.Images))
	copy(images, img.Images)

	pages := make([]models.PageRecord, 0, len(img.Pages))
	for _, p := range img.Pages {
		pages = append(pages, p.WithDefaults())
	}

	return models.ImageUploadResponse{
		Message: ImageParsedMessage,
		Images:  images,
		Pages:   pages,
	}
}

func ShapeDocument(doc models.DocumentResult) models.DocumentUploadResponse {
	pages := make([]string, len(doc.Pages))
	copy(pages, doc.Pages)

	return models.DocumentUploadResponse{
		Message:           DocumentParsedMessage,
		MarkdownDocuments: pages,
	}
}

// ShapeText joins every page's text with newlines, for the plain-text
// /parse response.
func ShapeText(result models.ParseResult) models.ParseTextResponse {
	var parts []string
	switch {
	case result.Document != nil:
		parts = result.Document.Pages
	case result.Image != nil:
		for _, p := range result.Image.Pages {
			parts = append(parts, p.Text)
		}
	}

	return models.ParseTextResponse{
		Text:           strings.Join(parts, "\n"),
		EmbeddingSaved: true,
	}
}
