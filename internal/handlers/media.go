package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nxtgm/feedserver/internal/storage"
)

const (
	maxImageBytes  = 16 << 20
	formFieldImage = "image"
)

// MediaHandler hosts post images on the configured object storage.
type MediaHandler struct {
	images storage.ImageStore
}

func NewMediaHandler(images storage.ImageStore) *MediaHandler {
	return &MediaHandler{images: images}
}

// MediaUploadRouter registers the upload route under /api.
func MediaUploadRouter(r chi.Router, images storage.ImageStore) {
	handler := NewMediaHandler(images)
	r.Post("/media", handler.UploadImage)
}

// MediaServeRouter registers the public serving route at the root.
func MediaServeRouter(r chi.Router, images storage.ImageStore) {
	handler := NewMediaHandler(images)
	r.Get("/media/{key}", handler.ServeImage)
}

type mediaUploadResponse struct {
	Message  string `json:"message"`
	ImageURI string `json:"image_uri"`
}

// UploadImage stores a multipart image and returns the URI to reference
// from a post's image_uri field.
func (h *MediaHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Image file is required")
		return
	}

	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil || int64(len(data)) > maxImageBytes {
		writeError(w, http.StatusBadRequest, "Image too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := uuid.NewString()
	if ext := strings.ToLower(path.Ext(header.Filename)); ext != "" {
		key += ext
	}

	if err := h.images.Save(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	writeJSON(w, http.StatusCreated, mediaUploadResponse{
		Message:  "Image uploaded successfully",
		ImageURI: "/media/" + key,
	})
}

// ServeImage streams a stored image back to the client.
func (h *MediaHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	object, contentType, err := h.images.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			writeError(w, http.StatusNotFound, "Image not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	defer object.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if _, err := io.Copy(w, object); err != nil {
		// Response is already partially written; nothing to report.
		return
	}
}
