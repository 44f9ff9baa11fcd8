package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/formbuilder/internal/access"
	"github.com/sakif/formbuilder/internal/auth"
	"github.com/sakif/formbuilder/internal/markdown"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/service"
)

// TemplateHandler serves templates, their questions and tag autocomplete.
type TemplateHandler struct {
	templates *service.TemplateService
	markdown  *markdown.Renderer
	logger    *slog.Logger
}

func NewTemplateHandler(templates *service.TemplateService, md *markdown.Renderer, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, markdown: md, logger: logger}
}

// templateResponse adds the rendered description to a template.
type templateResponse struct {
	*model.Template
	DescriptionHTML string `json:"descriptionHtml"`
}

type fieldRequest struct {
	Type     model.QuestionType `json:"type" validate:"required"`
	Title    string             `json:"title" validate:"required,max=200"`
	Required bool               `json:"required"`
}

type createTemplateRequest struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description" validate:"max=10000"`
	Topic       model.Topic    `json:"topic" validate:"required,oneof=Education Quiz Other"`
	ImageURL    string         `json:"imageUrl" validate:"omitempty,url"`
	IsPublic    bool           `json:"isPublic"`
	Tags        []string       `json:"tags" validate:"max=20,dive,max=50"`
	Access      []string       `json:"access"`
	Fields      []fieldRequest `json:"fields" validate:"dive"`
}

type updateTemplateRequest struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description" validate:"max=10000"`
	Topic       model.Topic `json:"topic" validate:"omitempty,oneof=Education Quiz Other"`
	ImageURL    *string     `json:"imageUrl" validate:"omitempty,url"`
	IsPublic    *bool       `json:"isPublic"`
	Tags        []string    `json:"tags" validate:"max=20,dive,max=50"`
	Access      []string    `json:"access"`
}

type addQuestionRequest struct {
	Type     model.QuestionType `json:"type" validate:"required"`
	Title    string             `json:"title" validate:"required,max=200"`
	Required bool               `json:"required"`
	Order    *int               `json:"order"`
}

type updateQuestionRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Required *bool  `json:"required"`
}

type reorderRequest struct {
	Order []string `json:"order" validate:"required,min=1"`
}

// HandleList returns readable templates.
//
// HTTP: GET /api/templates?topic=&tag=&search=&createdBy=&sort=latest|popular&limit=&offset=
func (h *TemplateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := model.TemplateFilter{
		Topic:     model.Topic(q.Get("topic")),
		Tag:       q.Get("tag"),
		Search:    q.Get("search"),
		CreatedBy: q.Get("createdBy"),
		Sort:      q.Get("sort"),
		Limit:     limit,
		Offset:    offset,
	}

	templates, err := h.templates.List(r.Context(), filter, auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	out := make([]templateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, h.render(&templates[i], auth.ActorFromContext(r.Context())))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate creates a template owned by the caller.
//
// HTTP: POST /api/templates
func (h *TemplateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	fields := make([]model.FieldInput, 0, len(req.Fields))
	for _, f := range req.Fields {
		fields = append(fields, model.FieldInput{Type: f.Type, Title: f.Title, Required: f.Required})
	}

	t, err := h.templates.Create(r.Context(), auth.ActorFromContext(r.Context()), service.TemplateInput{
		Title:       req.Title,
		Description: req.Description,
		Topic:       req.Topic,
		ImageURL:    req.ImageURL,
		IsPublic:    req.IsPublic,
		Tags:        req.Tags,
		Access:      req.Access,
		Fields:      fields,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.render(t, auth.ActorFromContext(r.Context())))
}

// HandleGet returns one template with its questions.
//
// HTTP: GET /api/templates/{id}
func (h *TemplateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Get(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render(t, auth.ActorFromContext(r.Context())))
}

// HandleUpdate replaces a template's settings, tags and grants.
//
// HTTP: PUT /api/templates/{id}
func (h *TemplateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	t, err := h.templates.Update(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()), service.TemplatePatch{
		Title:       req.Title,
		Description: req.Description,
		Topic:       req.Topic,
		ImageURL:    req.ImageURL,
		IsPublic:    req.IsPublic,
		Tags:        req.Tags,
		Access:      req.Access,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render(t, auth.ActorFromContext(r.Context())))
}

// HandleDelete removes a template and everything attached to it.
//
// HTTP: DELETE /api/templates/{id}
func (h *TemplateHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context())); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddQuestion appends a question.
//
// HTTP: POST /api/templates/{id}/questions
func (h *TemplateHandler) HandleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var req addQuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	q, err := h.templates.AddQuestion(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()), model.QuestionInput{
		Type:     req.Type,
		Title:    req.Title,
		Required: req.Required,
		Order:    req.Order,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// HandleUpdateQuestion edits a question's title and required flag.
//
// HTTP: PATCH /api/templates/{id}/questions/{questionID}
func (h *TemplateHandler) HandleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var req updateQuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	q, err := h.templates.UpdateQuestion(r.Context(), urlParam(r, "id"), urlParam(r, "questionID"),
		auth.ActorFromContext(r.Context()), req.Title, req.Required)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// HTTP: DELETE /api/templates/{id}/questions/{questionID}
func (h *TemplateHandler) HandleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	err := h.templates.DeleteQuestion(r.Context(), urlParam(r, "id"), urlParam(r, "questionID"), auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReorder sets the order of the user questions.
//
// HTTP: PUT /api/templates/{id}/questions/order
// REQUEST BODY: {"order": ["<questionID>", ...]}
func (h *TemplateHandler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	questions, err := h.templates.ReorderQuestions(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()), req.Order)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// HandleTags autocompletes tag names.
//
// HTTP: GET /api/tags?prefix=go&limit=10
func (h *TemplateHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	tags, err := h.templates.Tags(r.Context(), r.URL.Query().Get("prefix"), limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// render adds the description HTML. A rendering failure is logged and
// leaves the HTML empty; the raw description is still returned. Grantee
// ids are only shown to callers who may edit the template.
func (h *TemplateHandler) render(t *model.Template, actor *model.Actor) templateResponse {
	if !access.CanMutate(t, actor) {
		redacted := *t
		redacted.Access = []string{}
		t = &redacted
	}
	out := templateResponse{Template: t}
	html, err := h.markdown.Render(t.Description)
	if err != nil {
		h.logger.Warn("rendering description failed",
			slog.String("templateID", t.ID),
			slog.String("error", err.Error()),
		)
		return out
	}
	out.DescriptionHTML = html
	return out
}
