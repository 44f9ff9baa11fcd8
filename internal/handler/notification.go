package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/formbuilder/internal/auth"
	"github.com/sakif/formbuilder/internal/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// HandleList returns the caller's notifications, newest first.
//
// HTTP: GET /api/notifications?limit=20&offset=0
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	list, err := h.notifications.List(r.Context(), auth.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
