package fileserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func multipartBody(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, svc *Service, fileName string, content []byte) UploadResponse {
	t.Helper()
	body, contentType := multipartBody(t, fileName, content)
	r := httptest.NewRequest(http.MethodPost, "/api/files/documents", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	svc.Upload(w, r)

	var resp UploadResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func newService(t *testing.T, imagesOnly bool) *Service {
	return New(t.TempDir(), 1<<20, "/api/files/documents/", imagesOnly)
}

func TestUpload_PNGRoundTrip(t *testing.T) {
	svc := newService(t, false)
	content := append(append([]byte{}, pngHeader...), []byte("pixels")...)

	resp := upload(t, svc, "shot.png", content)
	require.True(t, resp.Success, resp.Error)
	require.True(t, strings.HasPrefix(resp.URL, "/api/files/documents/"))
	require.Equal(t, "image", resp.ContentType)
	require.Equal(t, "shot.png", resp.FileName)

	// Отдача разархивирует сохранённый .gz.
	stored := strings.TrimPrefix(resp.URL, "/api/files/documents/")
	r := httptest.NewRequest(http.MethodGet, "/api/files/documents/"+stored, nil)
	w := httptest.NewRecorder()
	svc.Serve(w, r, stored)
	require.Equal(t, http.StatusOK, w.Code)
	got, _ := io.ReadAll(w.Body)
	require.Equal(t, content, got)
}

func TestUpload_BlockedExtension(t *testing.T) {
	svc := newService(t, false)
	resp := upload(t, svc, "evil.exe", []byte("MZ..."))
	require.False(t, resp.Success)
	require.Equal(t, "file type not allowed", resp.Error)
}

func TestUpload_MagicMismatch(t *testing.T) {
	svc := newService(t, false)
	resp := upload(t, svc, "fake.png", []byte("not a png at all"))
	require.False(t, resp.Success)
	require.Equal(t, "file content does not match type", resp.Error)
}

func TestUpload_ImagesOnlyRejectsDocuments(t *testing.T) {
	svc := newService(t, true)
	resp := upload(t, svc, "report.pdf", []byte("%PDF-1.4"))
	require.False(t, resp.Success)
	require.Equal(t, "only images are allowed", resp.Error)
}

func TestUpload_DisabledDegradesToErrorObject(t *testing.T) {
	svc := newService(t, false)
	svc.Disabled = true
	resp := upload(t, svc, "shot.png", append(append([]byte{}, pngHeader...), 1, 2, 3))
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Error)
}

func TestServe_MissingFile(t *testing.T) {
	svc := newService(t, false)
	r := httptest.NewRequest(http.MethodGet, "/api/files/documents/nope.png", nil)
	w := httptest.NewRecorder()
	svc.Serve(w, r, "nope.png")
	require.Equal(t, http.StatusNotFound, w.Code)
}
