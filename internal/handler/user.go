package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/formbuilder/internal/auth"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/service"
)

// UserHandler is the admin panel API.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type statusRequest struct {
	Status model.UserStatus `json:"status" validate:"required,oneof=active blocked"`
}

type adminRequest struct {
	IsAdmin *bool `json:"isAdmin" validate:"required"`
}

// HandleList pages through all users.
//
// HTTP: GET /api/users?limit=20&offset=0
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	users, err := h.users.List(r.Context(), auth.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleSetStatus blocks or unblocks a user.
//
// HTTP: PATCH /api/users/{id}/status
func (h *UserHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	user, err := h.users.SetStatus(r.Context(), auth.ActorFromContext(r.Context()), urlParam(r, "id"), req.Status)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleSetAdmin grants or revokes admin rights.
//
// HTTP: PATCH /api/users/{id}/admin
func (h *UserHandler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	user, err := h.users.SetAdmin(r.Context(), auth.ActorFromContext(r.Context()), urlParam(r, "id"), *req.IsAdmin)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete removes a user with no remaining content.
//
// HTTP: DELETE /api/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), auth.ActorFromContext(r.Context()), urlParam(r, "id")); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
