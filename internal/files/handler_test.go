package files

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supriyameruva/filegate/internal/response"
	"github.com/supriyameruva/filegate/internal/storage"
	"github.com/supriyameruva/filegate/internal/storage/mock"
	"github.com/supriyameruva/filegate/internal/validate"
)

var (
	objectTarget = storage.Target{Kind: storage.ObjectStore, Container: "uploads"}
	shareTarget  = storage.Target{Kind: storage.Share}
)

func newRouter(t *testing.T, gw *mock.Gateway, overwrite bool, maxBytes int64) *chi.Mux {
	t.Helper()
	svc := NewService(gw, validate.DefaultAllowedExtensions(), overwrite,
		5*time.Second, objectTarget, shareTarget)
	h := NewHandler(svc, maxBytes)

	r := chi.NewRouter()
	r.Post("/upload", h.UploadShare)
	r.Post("/upload_blob", h.UploadBlob)
	r.Get("/list", h.ListShare)
	r.Get("/list_blobs", h.ListBlobs)
	r.Get("/download/{name}", h.DownloadShare)
	r.Get("/download_blob/{name}", h.DownloadBlob)
	return r
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, r http.Handler, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func TestUploadStoresFile(t *testing.T) {
	gw := mock.NewGateway()
	r := newRouter(t, gw, false, 16<<20)

	w := postUpload(t, r, "/upload_blob", "cat.png", []byte("meow"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)

	stored, ok := gw.Content(objectTarget, "cat.png")
	require.True(t, ok)
	assert.Equal(t, []byte("meow"), stored)
}

func TestUploadSanitizesName(t *testing.T) {
	gw := mock.NewGateway()
	r := newRouter(t, gw, false, 16<<20)

	w := postUpload(t, r, "/upload", "../../escape.txt", []byte("data"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, ok := gw.Content(shareTarget, "escape.txt")
	assert.True(t, ok)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	gw := mock.NewGateway()
	r := newRouter(t, gw, false, 16<<20)

	w := postUpload(t, r, "/upload", "virus.exe", []byte("nope"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "file type not allowed", env.Error)
	assert.Empty(t, gw.Uploads)
}

func TestUploadRequiresFileField(t *testing.T) {
	gw := mock.NewGateway()
	r := newRouter(t, gw, false, 16<<20)

	body, contentType := multipartBody(t, "wrong_field", "cat.png", []byte("meow"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadDuplicatePolicies(t *testing.T) {
	t.Run("fail if exists", func(t *testing.T) {
		gw := mock.NewGateway()
		r := newRouter(t, gw, false, 16<<20)

		w := postUpload(t, r, "/upload_blob", "a.txt", []byte("first"))
		require.Equal(t, http.StatusOK, w.Code)

		w = postUpload(t, r, "/upload_blob", "a.txt", []byte("second"))
		assert.Equal(t, http.StatusConflict, w.Code)

		stored, _ := gw.Content(objectTarget, "a.txt")
		assert.Equal(t, []byte("first"), stored)
	})

	t.Run("overwrite", func(t *testing.T) {
		gw := mock.NewGateway()
		r := newRouter(t, gw, true, 16<<20)

		w := postUpload(t, r, "/upload_blob", "a.txt", []byte("first"))
		require.Equal(t, http.StatusOK, w.Code)

		w = postUpload(t, r, "/upload_blob", "a.txt", []byte("second"))
		require.Equal(t, http.StatusOK, w.Code)

		stored, _ := gw.Content(objectTarget, "a.txt")
		assert.Equal(t, []byte("second"), stored)
	})
}

func TestUploadTooLarge(t *testing.T) {
	gw := mock.NewGateway()
	r := newRouter(t, gw, false, 64) // tiny ceiling

	w := postUpload(t, r, "/upload", "big.txt", bytes.Repeat([]byte("x"), 1024))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, gw.Uploads)
}

func TestListReturnsNames(t *testing.T) {
	gw := mock.NewGateway()
	gw.Set(shareTarget, "a.txt", []byte("a"))
	gw.Set(shareTarget, "b.png", []byte("b"))
	r := newRouter(t, gw, false, 16<<20)

	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Files []string `json:"files"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	assert.ElementsMatch(t, []string{"a.txt", "b.png"}, env.Data.Files)
}

func TestDownloadStreamsContent(t *testing.T) {
	gw := mock.NewGateway()
	gw.Set(objectTarget, "doc.pdf", []byte("%PDF-1.7"))
	r := newRouter(t, gw, false, 16<<20)

	req := httptest.NewRequest(http.MethodGet, "/download_blob/doc.pdf", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="doc.pdf"`)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), body)
}

func TestDownloadNotFound(t *testing.T) {
	gw := mock.NewGateway()
	r := newRouter(t, gw, false, 16<<20)

	req := httptest.NewRequest(http.MethodGet, "/download/absent.txt", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadInvalidNameIsNotFound(t *testing.T) {
	gw := mock.NewGateway()
	r := newRouter(t, gw, false, 16<<20)

	req := httptest.NewRequest(http.MethodGet, "/download/secrets", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBackendErrorIsOpaque500(t *testing.T) {
	gw := mock.NewGateway()
	gw.ListErr = io.ErrUnexpectedEOF
	r := newRouter(t, gw, false, 16<<20)

	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "internal server error", env.Error)
}
