package handler

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/chasmos/internal/config"
	"github.com/chasmos/internal/fileserver"
)

// FileHandler раздаёт два хранилища: документы (любые разрешённые типы)
// и скриншоты (только изображения).
type FileHandler struct {
	cfg         *config.Config
	documents   *fileserver.Service
	screenshots *fileserver.Service
}

func NewFileHandler(cfg *config.Config) *FileHandler {
	return &FileHandler{
		cfg:         cfg,
		documents:   fileserver.New(cfg.DocumentsDir, cfg.MaxUploadSize, "/api/files/documents/", false),
		screenshots: fileserver.New(cfg.ScreenshotsDir, cfg.MaxUploadSize, "/api/files/screenshots/", true),
	}
}

func (h *FileHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	h.documents.Upload(w, r)
}

func (h *FileHandler) UploadScreenshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	h.screenshots.Upload(w, r)
}

func (h *FileHandler) ServeDocument(w http.ResponseWriter, r *http.Request) {
	h.documents.Serve(w, r, filepath.Base(chi.URLParam(r, "filename")))
}

func (h *FileHandler) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	h.screenshots.Serve(w, r, filepath.Base(chi.URLParam(r, "filename")))
}
