package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/formbuilder/internal/auth"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/service"
)

// FormHandler serves submissions.
type FormHandler struct {
	forms  *service.FormService
	logger *slog.Logger
}

func NewFormHandler(forms *service.FormService, logger *slog.Logger) *FormHandler {
	return &FormHandler{forms: forms, logger: logger}
}

// answersRequest carries answers as sent; values keep their JSON type
// (string, number or bool) until the service stores them as text.
type answersRequest struct {
	Answers []answerRequest `json:"answers" validate:"dive"`
}

type answerRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Value      any    `json:"value"`
}

func (req answersRequest) inputs() []model.AnswerInput {
	out := make([]model.AnswerInput, 0, len(req.Answers))
	for _, a := range req.Answers {
		out = append(out, model.AnswerInput{QuestionID: a.QuestionID, Value: a.Value})
	}
	return out
}

// HandleSubmit stores a new form for a template.
//
// HTTP: POST /api/templates/{id}/forms
// REQUEST BODY: {"answers": [{"questionId": "...", "value": "..."}]}
func (h *FormHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	f, err := h.forms.Submit(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()), req.inputs())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// HandleListForTemplate lists the forms of a template the caller may see.
//
// HTTP: GET /api/templates/{id}/forms
func (h *FormHandler) HandleListForTemplate(w http.ResponseWriter, r *http.Request) {
	forms, err := h.forms.ListForTemplate(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

// HTTP: GET /api/forms/mine
func (h *FormHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	forms, err := h.forms.ListMine(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

// HTTP: GET /api/forms/{id}
func (h *FormHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	f, err := h.forms.Get(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HandleUpdate replaces every answer of a form.
//
// HTTP: PUT /api/forms/{id}
func (h *FormHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	f, err := h.forms.Update(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()), req.inputs())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HTTP: DELETE /api/forms/{id}
func (h *FormHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.forms.Delete(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context())); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
