package llamacloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"doc-parser/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloud struct {
	pendingFor  int32
	statusCalls atomic.Int32
	uploads     atomic.Int32
	pages       []map[string]any
	images      map[string][]byte
	jobStatus   string
	uploadCode  int

	mu         sync.Mutex
	lastFields map[string]string
	authHeader string
}

func (f *fakeCloud) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/parsing/upload", func(w http.ResponseWriter, r *http.Request) {
		f.uploads.Add(1)
		f.mu.Lock()
		f.authHeader = r.Header.Get("Authorization")
		f.mu.Unlock()

		if f.uploadCode != 0 {
			w.WriteHeader(f.uploadCode)
			_, _ = w.Write([]byte(`{"detail":"Invalid authentication token"}`))
			return
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		fields := map[string]string{"filename": hdr.Filename}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f.mu.Lock()
		f.lastFields = fields
		f.mu.Unlock()

		writeJSON(w, map[string]string{"id": "job-1", "status": statusPending})
	})

	mux.HandleFunc("GET /api/parsing/job/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := f.statusCalls.Add(1)
		status := statusSuccess
		if n <= f.pendingFor {
			status = statusPending
		} else if f.jobStatus != "" {
			status = f.jobStatus
		}
		writeJSON(w, map[string]string{"id": r.PathValue("id"), "status": status, "error_message": "bad file"})
	})

	mux.HandleFunc("GET /api/parsing/job/{id}/result/json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"pages": f.pages})
	})

	mux.HandleFunc("GET /api/parsing/job/{id}/result/image/{name}", func(w http.ResponseWriter, r *http.Request) {
		data, ok := f.images[r.PathValue("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeCloud) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	return New(Options{
		APIKey:       "llx-test",
		BaseURL:      srv.URL + "/",
		NumWorkers:   2,
		Timeout:      5 * time.Second,
		PollInterval: 5 * time.Millisecond,
	})
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestClient_ParseMarkdownPages(t *testing.T) {
	f := &fakeCloud{
		pendingFor: 2,
		pages: []map[string]any{
			{"page": 1, "md": "# One"},
			{"page": 2, "md": "Two"},
			{"page": 3},
		},
	}
	c := newTestClient(t, f)

	pages, err := c.ParseMarkdownPages(context.Background(), writeTempFile(t, "report.pdf", "%PDF"))
	require.NoError(t, err)

	assert.Equal(t, []string{"# One", "Two", ""}, pages)
	assert.EqualValues(t, 1, f.uploads.Load())
	assert.EqualValues(t, 3, f.statusCalls.Load())
	assert.Equal(t, "Bearer llx-test", f.authHeader)
	assert.Equal(t, "report.pdf", f.lastFields["filename"])
	assert.Equal(t, "en", f.lastFields["language"])
}

func TestClient_ParseImagesFiltersByType(t *testing.T) {
	f := &fakeCloud{
		pages: []map[string]any{{
			"page": 1,
			"text": "hello",
			"md":   "# hello",
			"images": []map[string]any{
				{"name": "page_1.jpg", "type": ScreenshotImageType, "width": 800, "height": 600},
				{"name": "img_p0_1.png", "type": "embedded", "width": 10, "height": 10},
			},
			"structuredData": map[string]any{"k": "v"},
		}},
		images: map[string][]byte{
			"page_1.jpg":   []byte("shot"),
			"img_p0_1.png": []byte("embedded"),
		},
	}
	c := newTestClient(t, f)

	parsed, err := c.ParseImages(context.Background(), writeTempFile(t, "photo.png", "png"), models.ImageOptions{
		IncludeScreenshots: true,
	})
	require.NoError(t, err)

	require.Len(t, parsed.Images, 1)
	assert.Equal(t, "page_1.jpg", parsed.Images[0].Name)
	assert.Equal(t, []byte("shot"), parsed.Images[0].Data)
	assert.Contains(t, parsed.Images[0].Description, "800x600")

	require.Len(t, parsed.Pages, 1)
	page := parsed.Pages[0]
	assert.Equal(t, "hello", page.Text)
	assert.Equal(t, "# hello", page.Markdown)
	assert.Len(t, page.Images, 2)
	assert.NotNil(t, page.Layout)
	assert.Equal(t, "v", page.StructuredData["k"])

	assert.Equal(t, "true", f.lastFields["take_screenshot"])
	assert.Equal(t, "true", f.lastFields["disable_image_extraction"])
}

func TestClient_ParseImagesKeepsOrder(t *testing.T) {
	images := []map[string]any{}
	data := map[string][]byte{}
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		images = append(images, map[string]any{"name": name, "type": "embedded"})
		data[name] = []byte(name)
	}
	f := &fakeCloud{pages: []map[string]any{{"page": 1, "images": images}}, images: data}
	c := newTestClient(t, f)

	parsed, err := c.ParseImages(context.Background(), writeTempFile(t, "x.pdf", "x"), models.ImageOptions{
		IncludeObjectImages: true,
	})
	require.NoError(t, err)

	require.Len(t, parsed.Images, 4)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		assert.Equal(t, name, parsed.Images[i].Name)
		assert.Equal(t, []byte(name), parsed.Images[i].Data)
	}
	assert.NotContains(t, f.lastFields, "take_screenshot")
}

func TestClient_MissingImageFails(t *testing.T) {
	f := &fakeCloud{pages: []map[string]any{{
		"images": []map[string]any{{"name": "gone.jpg", "type": ScreenshotImageType}},
	}}}
	c := newTestClient(t, f)

	_, err := c.ParseImages(context.Background(), writeTempFile(t, "x.png", "x"), models.ImageOptions{IncludeScreenshots: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_UnauthorizedCarriesStatus(t *testing.T) {
	f := &fakeCloud{uploadCode: http.StatusUnauthorized}
	c := newTestClient(t, f)

	_, err := c.ParseMarkdownPages(context.Background(), writeTempFile(t, "a.pdf", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Unauthorized")
	assert.Zero(t, f.statusCalls.Load())
}

func TestClient_JobError(t *testing.T) {
	f := &fakeCloud{jobStatus: statusError}
	c := newTestClient(t, f)

	_, err := c.ParseMarkdownPages(context.Background(), writeTempFile(t, "a.pdf", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad file")
	assert.EqualValues(t, 1, f.uploads.Load())
}

func TestClient_TimeoutStopsPolling(t *testing.T) {
	f := &fakeCloud{pendingFor: 1 << 30}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c := New(Options{
		BaseURL:      srv.URL,
		Timeout:      50 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})

	_, err := c.ParseMarkdownPages(context.Background(), writeTempFile(t, "a.pdf", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, f.uploads.Load())
}

func TestClient_MissingFile(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.ParseMarkdownPages(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
