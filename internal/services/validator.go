package services

import (
	"errors"
	"fmt"
	"mime/multipart"
	"regexp"
	"strings"
	"unicode/utf8"

	"doc-parser/internal/models"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// MaxUploadBytes is the default upload ceiling (20 MiB).
const MaxUploadBytes int64 = 20 << 20

var allowedExtensions = []string{"ppt", "pptx", "pdf", "png", "jpg", "jpeg"}

var imageExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	windowsDeviceNames  = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true,
		"LPT1": true, "LPT2": true, "LPT3": true,
	}
)

func allowedExtensionList() string {
	return strings.Join(allowedExtensions, ", ")
}

// IsImageExtension reports whether ext goes through image extraction.
func IsImageExtension(ext string) bool {
	return imageExtensions[strings.ToLower(ext)]
}

// ExtensionOf returns the allowed extension the lower-cased name ends
// with, or "" when none matches.
func ExtensionOf(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return ext
		}
	}
	return ""
}

type UploadValidator struct {
	validate *validator.Validate
	maxBytes int64
}

func NewUploadValidator(maxBytes int64) *UploadValidator {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}

	v := validator.New()
	_ = v.RegisterValidation("docext", func(fl validator.FieldLevel) bool {
		return ExtensionOf(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= maxBytes
	})

	return &UploadValidator{validate: v, maxBytes: maxBytes}
}

func (uv *UploadValidator) MaxBytes() int64 {
	return uv.maxBytes
}

// Validate checks a multipart file part and returns the filesystem-safe
// name and the lower-cased extension.
func (uv *UploadValidator) Validate(header *multipart.FileHeader) (string, string, error) {
	if header == nil {
		return "", "", ErrMissingFile
	}

	req := models.UploadRequest{
		FileName:   header.Filename,
		ByteLength: header.Size,
		Extension:  ExtensionOf(header.Filename),
	}
	if err := uv.ValidateRequest(req); err != nil {
		return "", "", err
	}

	return SecureUploadName(req.FileName, req.Extension), req.Extension, nil
}

// ValidateRequest applies the ordered rules: empty filename, unsupported
// type, then size.
func (uv *UploadValidator) ValidateRequest(req models.UploadRequest) error {
	err := uv.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate upload: %w", err)
	}

	failed := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		failed[fe.StructField()] = fe.Tag()
	}

	switch {
	case failed["FileName"] == "required":
		return ErrEmptyFilename
	case failed["FileName"] != "" || failed["Extension"] != "":
		return fmt.Errorf("%w: %s", ErrUnsupportedType, req.FileName)
	case failed["ByteLength"] != "":
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, req.ByteLength, uv.maxBytes)
	default:
		return fmt.Errorf("validate upload: %w", err)
	}
}

// SecureFilename reduces name to an ASCII-only base name that is safe to
// join onto a directory.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" {
		stem := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
		if windowsDeviceNames[stem] {
			name = "_" + name
		}
	}
	return name
}

// SecureUploadName sanitizes the stem and keeps the extension as
// uploaded, so the staged name always ends in ".<ext>".
func SecureUploadName(name, ext string) string {
	cut := len(name) - len(ext) - 1
	if cut < 0 || !strings.EqualFold(name[cut:], "."+ext) {
		return SecureFilename(name)
	}

	stem := SecureFilename(name[:cut])
	if stem == "" {
		stem = "upload"
	}
	return stem + name[cut:]
}
