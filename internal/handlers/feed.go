package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nxtgm/feedserver/internal/services"
	"github.com/nxtgm/feedserver/internal/store"
	"github.com/nxtgm/feedserver/types"
)

// FeedHandler provides the post, like, and comment endpoints.
type FeedHandler struct {
	feedService *services.FeedService
}

func NewFeedHandler(feedService *services.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// FeedRouter registers feed routes on the given router.
func FeedRouter(r chi.Router, feedService *services.FeedService) {
	handler := NewFeedHandler(feedService)

	r.Get("/feed", handler.ListFeed)
	r.Get("/feed/{id}", handler.GetPost)
	r.Get("/post/{id}", handler.GetPostsByAuthor)
	r.Post("/upload", handler.Upload)
	r.Delete("/delete/{id}", handler.DeletePost)
	r.Post("/like/{id}", handler.ToggleLike)
	r.Post("/comment/{id}", handler.AddComment)
}

type uploadRequest struct {
	Author    string `json:"author"`
	Title     string `json:"title"`
	Desc      string `json:"desc"`
	ImageURI  string `json:"image_uri"`
	Location  string `json:"location"`
	CreatedAt string `json:"createdAt"`
}

type uploadResponse struct {
	Message string `json:"message"`
	Title   string `json:"title"`
}

type likeRequest struct {
	UserID string `json:"userId"`
}

type commentRequest struct {
	UserID  string `json:"userId"`
	Comment string `json:"comment"`
}

type commentResponse struct {
	Message string        `json:"message"`
	Comment types.Comment `json:"comment"`
}

func (h *FeedHandler) ListFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feedService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *FeedHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	post, err := h.feedService.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *FeedHandler) GetPostsByAuthor(w http.ResponseWriter, r *http.Request) {
	author, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid author id")
		return
	}

	posts, err := h.feedService.ByAuthor(r.Context(), author)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *FeedHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Title, content, and author are required")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Desc = strings.TrimSpace(req.Desc)
	if req.Author == "" || req.Title == "" || req.Desc == "" {
		writeError(w, http.StatusBadRequest, "Title, content, and author are required")
		return
	}

	author, err := parseObjectID(req.Author)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid author id")
		return
	}

	// An unparsable createdAt falls back to the server clock.
	var createdAt time.Time
	if req.CreatedAt != "" {
		createdAt, _ = time.Parse(time.RFC3339, req.CreatedAt)
	}

	post, err := h.feedService.Upload(r.Context(), services.UploadInput{
		Author:    author,
		Title:     req.Title,
		Desc:      req.Desc,
		ImageURI:  req.ImageURI,
		Location:  req.Location,
		CreatedAt: createdAt,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Message: "Post uploaded successfully",
		Title:   post.Title,
	})
}

func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	if err := h.feedService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted successfully"})
}

func (h *FeedHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	postID, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "User ID required")
		return
	}

	userID, err := parseObjectID(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	outcome, err := h.feedService.ToggleLike(r.Context(), postID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: outcome})
}

func (h *FeedHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || strings.TrimSpace(req.Comment) == "" {
		writeError(w, http.StatusBadRequest, "User ID and comment required")
		return
	}

	userID, err := parseObjectID(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	comment, err := h.feedService.AddComment(r.Context(), postID, userID, req.Comment)
	if err != nil {
		if errors.Is(err, services.ErrUnknownAccount) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	writeJSON(w, http.StatusCreated, commentResponse{
		Message: "Comment added",
		Comment: comment,
	})
}
