package models

type UploadRequest struct {
	FileName   string `validate:"required,docext"`
	ByteLength int64  `validate:"gte=0,maxbytes"`
	Extension  string `validate:"required,oneof=ppt pptx pdf png jpg jpeg"`
}

type StagedFile struct {
	Path         string `json:"path"`
	OriginalName string `json:"originalName"`
}

// ParseResult holds exactly one of Document or Image.
type ParseResult struct {
	Document *DocumentResult
	Image    *ImageResult
}

type DocumentResult struct {
	Pages []string
}

type ImageResult struct {
	Images []ImageRecord
	Pages  []PageRecord
}

type ImageRecord struct {
	ImageBase64 string `json:"image_base64"`
	Description string `json:"description"`
}

// ScreenshotImageType marks a page image that is a render of the whole page.
const ScreenshotImageType = "full_page_screenshot"

type PageImage struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type PageRecord struct {
	Text           string           `json:"text"`
	Markdown       string           `json:"md"`
	Images         []PageImage      `json:"images"`
	Layout         []map[string]any `json:"layout"`
	StructuredData map[string]any   `json:"structuredData"`
}

// WithDefaults replaces nil collections so the record always serializes
// to empty arrays/objects instead of null.
func (p PageRecord) WithDefaults() PageRecord {
	if p.Images == nil {
		p.Images = []PageImage{}
	}
	if p.Layout == nil {
		p.Layout = []map[string]any{}
	}
	if p.StructuredData == nil {
		p.StructuredData = map[string]any{}
	}
	return p
}

type ImageUploadResponse struct {
	Message string        `json:"message"`
	Images  []ImageRecord `json:"images"`
	Pages   []PageRecord  `json:"pages"`
}

type DocumentUploadResponse struct {
	Message           string   `json:"message"`
	MarkdownDocuments []string `json:"markdown_documents"`
}

type ParseTextResponse struct {
	Text           string `json:"text"`
	EmbeddingSaved bool   `json:"embedding_saved"`
}

type ErrorCategory string

const (
	CategoryDNSFailure  ErrorCategory = "DnsFailure"
	CategoryAuthFailure ErrorCategory = "AuthFailure"
	CategoryGeneric     ErrorCategory = "Generic"
)

type ErrorReport struct {
	Category    ErrorCategory `json:"category"`
	Status      int           `json:"-"`
	Message     string        `json:"error"`
	Suggestions []string      `json:"suggestions"`
	Trace       string        `json:"trace"`
}

type TeamRecord struct {
	TeamName                    string   `json:"team_name"`
	FileLinks                   []string `json:"file_links"`
	ProblemStatementID          *string  `json:"problem_statement_id,omitempty"`
	ProblemStatementTitle       *string  `json:"problem_statement_title,omitempty"`
	ProblemStatementDescription *string  `json:"problem_statement_description,omitempty"`
}

type TeamsResponse struct {
	Teams []TeamRecord `json:"teams"`
	Count int          `json:"count"`
}

type FailedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type CleanResult struct {
	DeletedFiles []string     `json:"deleted_files"`
	FailedFiles  []FailedFile `json:"failed_files,omitempty"`
}

type CleanResponse struct {
	Message      string   `json:"message"`
	DeletedFiles []string `json:"deleted_files"`
	DeletedCount int      `json:"deleted_count"`
}

type DetectRequest struct {
	Text string `json:"text" binding:"required"`
}

type Classification struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}

type DetectResponse struct {
	Text string `json:"text"`
	Classification
}

// ExtractedImage is an image returned by a parser backend before it is
// base64-encoded for the response.
type ExtractedImage struct {
	Name        string
	Data        []byte
	Description string
}

type ParsedImages struct {
	Images []ExtractedImage
	Pages  []PageRecord
}

type ImageOptions struct {
	IncludeScreenshots  bool
	IncludeObjectImages bool
}
