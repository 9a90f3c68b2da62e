package services

import (
	"mime/multipart"
	"testing"

	"doc-parser/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadValidator_Validate(t *testing.T) {
	tests := []struct {
		name     string
		header   *multipart.FileHeader
		wantErr  error
		wantName string
		wantExt  string
	}{
		{
			name:    "missing file part",
			header:  nil,
			wantErr: ErrMissingFile,
		},
		{
			name:    "empty filename",
			header:  &multipart.FileHeader{Filename: "", Size: 10},
			wantErr: ErrEmptyFilename,
		},
		{
			name:    "unsupported extension",
			header:  &multipart.FileHeader{Filename: "notes.docx", Size: 10},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "no extension",
			header:  &multipart.FileHeader{Filename: "README", Size: 10},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "unsupported wins over size",
			header:  &multipart.FileHeader{Filename: "huge.exe", Size: MaxUploadBytes + 1},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "too large",
			header:  &multipart.FileHeader{Filename: "deck.pptx", Size: MaxUploadBytes + 1},
			wantErr: ErrTooLarge,
		},
		{
			name:     "exactly at the limit",
			header:   &multipart.FileHeader{Filename: "report.pdf", Size: MaxUploadBytes},
			wantName: "report.pdf",
			wantExt:  "pdf",
		},
		{
			name:     "upper-case extension",
			header:   &multipart.FileHeader{Filename: "PHOTO.JPG", Size: 1024},
			wantName: "PHOTO.JPG",
			wantExt:  "jpg",
		},
		{
			name:     "path traversal is stripped",
			header:   &multipart.FileHeader{Filename: "../../etc/passwd.png", Size: 1024},
			wantName: "etc_passwd.png",
			wantExt:  "png",
		},
		{
			name:     "ppt is not confused with pptx",
			header:   &multipart.FileHeader{Filename: "slides.ppt", Size: 1024},
			wantName: "slides.ppt",
			wantExt:  "ppt",
		},
	}

	v := NewUploadValidator(MaxUploadBytes)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ext, err := v.Validate(tt.header)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestUploadValidator_CustomLimit(t *testing.T) {
	v := NewUploadValidator(100)

	err := v.ValidateRequest(models.UploadRequest{FileName: "a.pdf", ByteLength: 101, Extension: "pdf"})
	assert.ErrorIs(t, err, ErrTooLarge)

	err = v.ValidateRequest(models.UploadRequest{FileName: "a.pdf", ByteLength: 100, Extension: "pdf"})
	assert.NoError(t, err)
}

func TestSecureFilename(t *testing.T) {
	tests := map[string]string{
		"My cool movie.mov":          "My_cool_movie.mov",
		"../../../etc/passwd":        "etc_passwd",
		`..\windows\system.ini`:      "windows_system.ini",
		"i contain cool ümläuts.txt": "i_contain_cool_umlauts.txt",
		"résumé.pdf":                 "resume.pdf",
		"CON.png":                    "_CON.png",
		"...":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SecureFilename(in), "input %q", in)
	}
}

func TestSecureUploadName_KeepsExtension(t *testing.T) {
	assert.Equal(t, "upload.pdf", SecureUploadName("报告.pdf", "pdf"))
	assert.Equal(t, "deck.pptx", SecureUploadName("deck.pptx", "pptx"))
	assert.Equal(t, "_CON.PNG", SecureUploadName("CON.PNG", "png"))
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, "pptx", ExtensionOf("Deck.PPTX"))
	assert.Equal(t, "jpeg", ExtensionOf("a.b.jpeg"))
	assert.Equal(t, "", ExtensionOf("archive.pdf.zip"))
	assert.True(t, IsImageExtension("JPG"))
	assert.False(t, IsImageExtension("pdf"))
}
