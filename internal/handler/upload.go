package handler

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxUploadSize caps image uploads at 25MB.
const maxUploadSize = 25 << 20

// UploadHandler stores admin-uploaded images under the uploads directory,
// which the server exposes at /data/uploads/.
type UploadHandler struct {
	dir string
}

func NewUploadHandler(dir string) *UploadHandler {
	return &UploadHandler{dir: dir}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// Image accepts one multipart file field named "image". Only image/* types
// are accepted, and the stored name is random so uploads cannot collide or
// be guessed.
func (h *UploadHandler) Image(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "File too large or malformed upload")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file field required")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		respondError(w, http.StatusBadRequest, "Only image uploads are allowed")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico":
	default:
		respondError(w, http.StatusBadRequest, "Unsupported image extension")
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	name := hex.EncodeToString(buf) + ext

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	dst, err := os.Create(filepath.Join(h.dir, name))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Success: true, URL: "/data/uploads/" + name})
}
