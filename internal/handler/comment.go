package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/formbuilder/internal/auth"
	"github.com/sakif/formbuilder/internal/service"
)

// CommentHandler serves comments and likes.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

type commentRequest struct {
	Content string `json:"content" validate:"required"`
}

// HTTP: GET /api/templates/{id}/comments
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HTTP: POST /api/templates/{id}/comments
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	c, err := h.comments.Create(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()), req.Content)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HTTP: DELETE /api/comments/{id}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Delete(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context())); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: POST /api/templates/{id}/like
func (h *CommentHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Like(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context())); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: DELETE /api/templates/{id}/like
func (h *CommentHandler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Unlike(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context())); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
