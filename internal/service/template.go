package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/formbuilder/internal/access"
	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/metrics"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

const (
	// MaxQuestionsPerType caps the non-fixed questions of one type.
	MaxQuestionsPerType = 4
	MaxTitleLength      = 200
	MaxTagsPerTemplate  = 20
)

// TemplateInput is a create request. Fields become the user questions in
// the order given.
type TemplateInput struct {
	Title       string
	Description string
	Topic       model.Topic
	ImageURL    string
	IsPublic    bool
	Tags        []string
	Access      []string
	Fields      []model.FieldInput
}

// TemplatePatch is an update request. Title and description are replaced
// as given. A nil IsPublic means false. Empty Topic and nil ImageURL keep
// the stored values. Tags and Access replace the stored sets.
type TemplatePatch struct {
	Title       string
	Description string
	Topic       model.Topic
	ImageURL    *string
	IsPublic    *bool
	Tags        []string
	Access      []string
}

// TemplateService owns templates and their questions, tags and grants.
type TemplateService struct {
	templates repository.TemplateRepository
	questions repository.QuestionRepository
	users     repository.UserRepository
	likes     repository.LikeRepository
	notifier  *NotificationService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewTemplateService(
	templates repository.TemplateRepository,
	questions repository.QuestionRepository,
	users repository.UserRepository,
	likes repository.LikeRepository,
	notifier *NotificationService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TemplateService {
	return &TemplateService{
		templates: templates,
		questions: questions,
		users:     users,
		likes:     likes,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
	}
}

// Create validates the whole request before writing anything. The two
// fixed questions are always added, at orders -2 and -1.
func (s *TemplateService) Create(ctx context.Context, actor *model.Actor, in TemplateInput) (*model.Template, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}

	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if !in.Topic.Valid() {
		return nil, apperror.ValidationFailed("topic", fmt.Sprintf("topic %q is not one of Education, Quiz, Other", in.Topic))
	}
	questions, err := buildQuestions(in.Fields)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	grants, err := s.checkGrantees(ctx, in.Access)
	if err != nil {
		return nil, err
	}

	t := &model.Template{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Topic:       in.Topic,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		IsPublic:    in.IsPublic,
		CreatedBy:   actor.ID,
		Questions:   questions,
		Tags:        tags,
		Access:      grants,
	}
	if err := s.templates.CreateTemplate(ctx, t); err != nil {
		return nil, storageError(s.logger, "creating template", err)
	}

	s.metrics.TemplateCreated()
	s.logger.Info("template created",
		slog.String("templateID", t.ID),
		slog.String("by", actor.ID),
		slog.Int("questions", len(t.Questions)),
	)
	s.notifyGrantees(ctx, t, grants)

	return s.load(ctx, t.ID)
}

// Get returns the template if actor may read it, with LikedByMe filled.
func (s *TemplateService) Get(ctx context.Context, id string, actor *model.Actor) (*model.Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireRead(t, actor); err != nil {
		return nil, err
	}
	if actor != nil {
		liked, err := s.likes.HasLiked(ctx, t.ID, actor.ID)
		if err != nil {
			return nil, storageError(s.logger, "loading like", err)
		}
		t.LikedByMe = liked
	}
	return t, nil
}

// List returns a page of the templates matching filter that actor may read.
func (s *TemplateService) List(ctx context.Context, filter model.TemplateFilter, actor *model.Actor) ([]model.Template, error) {
	if filter.Topic != "" && !filter.Topic.Valid() {
		return nil, apperror.ValidationFailed("topic", fmt.Sprintf("unknown topic %q", filter.Topic))
	}
	if filter.Sort != "" && filter.Sort != "latest" && filter.Sort != "popular" {
		return nil, apperror.ValidationFailed("sort", "sort must be latest or popular")
	}
	page := clampPage(filter.Limit, filter.Offset)

	all, err := s.templates.ListTemplates(ctx, filter)
	if err != nil {
		return nil, storageError(s.logger, "listing templates", err)
	}

	visible := make([]model.Template, 0, page.Limit)
	skipped := 0
	for i := range all {
		if !access.CanRead(&all[i], actor) {
			continue
		}
		if skipped < page.Offset {
			skipped++
			continue
		}
		visible = append(visible, all[i])
		if len(visible) == page.Limit {
			break
		}
	}
	return visible, nil
}

// Tags returns tag names starting with prefix, for autocomplete.
func (s *TemplateService) Tags(ctx context.Context, prefix string, limit int) ([]string, error) {
	tags, err := s.templates.SearchTags(ctx, strings.TrimSpace(prefix), clampPage(limit, 0).Limit)
	if err != nil {
		return nil, storageError(s.logger, "searching tags", err)
	}
	return tags, nil
}

// Update requires mutation access. Users who gain a grant are notified.
func (s *TemplateService) Update(ctx context.Context, id string, actor *model.Actor, patch TemplatePatch) (*model.Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMutate(t, actor); err != nil {
		return nil, err
	}

	title, err := validateTitle(patch.Title)
	if err != nil {
		return nil, err
	}
	topic := t.Topic
	if patch.Topic != "" {
		if !patch.Topic.Valid() {
			return nil, apperror.ValidationFailed("topic", fmt.Sprintf("topic %q is not one of Education, Quiz, Other", patch.Topic))
		}
		topic = patch.Topic
	}
	imageURL := t.ImageURL
	if patch.ImageURL != nil {
		imageURL = strings.TrimSpace(*patch.ImageURL)
	}
	tags, err := normalizeTags(patch.Tags)
	if err != nil {
		return nil, err
	}
	grants, err := s.checkGrantees(ctx, patch.Access)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, userID := range grants {
		if !t.HasGrant(userID) {
			added = append(added, userID)
		}
	}

	t.Title = title
	t.Description = strings.TrimSpace(patch.Description)
	t.Topic = topic
	t.ImageURL = imageURL
	t.IsPublic = patch.IsPublic != nil && *patch.IsPublic
	t.Tags = tags
	t.Access = grants

	if err := s.templates.UpdateTemplate(ctx, t); err != nil {
		return nil, storageError(s.logger, "updating template", err)
	}

	s.logger.Info("template updated", slog.String("templateID", t.ID), slog.String("by", actor.ID))
	s.notifyGrantees(ctx, t, added)

	return s.load(ctx, t.ID)
}

// Delete requires mutation access and removes everything the template owns.
func (s *TemplateService) Delete(ctx context.Context, id string, actor *model.Actor) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := access.RequireMutate(t, actor); err != nil {
		return err
	}
	if err := s.templates.DeleteTemplate(ctx, id); err != nil {
		return storageError(s.logger, "deleting template", err)
	}
	s.logger.Info("template deleted", slog.String("templateID", id), slog.String("by", actor.ID))
	return nil
}

// AddQuestion appends a user question. The per-type cap is checked here,
// the only place a new question can appear on an existing template.
func (s *TemplateService) AddQuestion(ctx context.Context, templateID string, actor *model.Actor, in model.QuestionInput) (*model.Question, error) {
	t, err := s.load(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMutate(t, actor); err != nil {
		return nil, err
	}

	if err := validateQuestionType(in.Type); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "question title is required")
	}

	n, err := s.questions.CountQuestionsByType(ctx, templateID, in.Type)
	if err != nil {
		return nil, storageError(s.logger, "counting questions", err)
	}
	if n >= MaxQuestionsPerType {
		return nil, apperror.ValidationFailed("type",
			fmt.Sprintf("a template can hold at most %d %s questions", MaxQuestionsPerType, in.Type))
	}

	order := nextOrder(t.Questions)
	if in.Order != nil {
		if *in.Order < 0 {
			return nil, apperror.ValidationFailed("order", "order must not be negative")
		}
		if *in.Order < order {
			order = *in.Order
		}
	}

	q := &model.Question{
		TemplateID: templateID,
		Type:       in.Type,
		Title:      title,
		Order:      order,
		Required:   in.Required,
	}
	if err := s.questions.CreateQuestion(ctx, q); err != nil {
		return nil, storageError(s.logger, "creating question", err)
	}
	s.logger.Info("question added", slog.String("templateID", templateID), slog.String("questionID", q.ID))
	return q, nil
}

// UpdateQuestion changes a user question's title and required flag. The
// type is fixed at creation, so the per-type cap cannot be exceeded here.
func (s *TemplateService) UpdateQuestion(ctx context.Context, templateID, questionID string, actor *model.Actor, title string, required *bool) (*model.Question, error) {
	q, err := s.mutableQuestion(ctx, templateID, questionID, actor)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "question title is required")
	}
	q.Title = title
	if required != nil {
		q.Required = *required
	}

	if err := s.questions.UpdateQuestion(ctx, q); err != nil {
		return nil, storageError(s.logger, "updating question", err)
	}
	return q, nil
}

// DeleteQuestion removes a user question and its answers. Fixed
// questions are rejected.
func (s *TemplateService) DeleteQuestion(ctx context.Context, templateID, questionID string, actor *model.Actor) error {
	if _, err := s.mutableQuestion(ctx, templateID, questionID, actor); err != nil {
		return err
	}
	if err := s.questions.DeleteQuestion(ctx, questionID); err != nil {
		return storageError(s.logger, "deleting question", err)
	}
	s.logger.Info("question deleted", slog.String("templateID", templateID), slog.String("questionID", questionID))
	return nil
}

// ReorderQuestions gives orderedIDs[i] order i. Every id must be a user
// question of this template, listed once; otherwise nothing changes.
// Unlisted user questions keep their relative order after the listed ones.
func (s *TemplateService) ReorderQuestions(ctx context.Context, templateID string, actor *model.Actor, orderedIDs []string) ([]model.Question, error) {
	t, err := s.load(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMutate(t, actor); err != nil {
		return nil, err
	}
	if len(orderedIDs) == 0 {
		return nil, apperror.ValidationFailed("order", "question order is required")
	}

	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		q := t.Question(id)
		if q == nil {
			return nil, apperror.ValidationFailed("order", fmt.Sprintf("question %s does not belong to this template", id))
		}
		if q.Fixed {
			return nil, apperror.ValidationFailed("order", "fixed questions cannot be reordered")
		}
		if seen[id] {
			return nil, apperror.ValidationFailed("order", fmt.Sprintf("question %s is listed twice", id))
		}
		seen[id] = true
	}

	if err := s.questions.ReorderQuestions(ctx, templateID, orderedIDs); err != nil {
		return nil, storageError(s.logger, "reordering questions", err)
	}

	t, err = s.load(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return t.Questions, nil
}

func (s *TemplateService) load(ctx context.Context, id string) (*model.Template, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "template ID is required")
	}
	t, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return nil, storageError(s.logger, "loading template", err)
	}
	return t, nil
}

func (s *TemplateService) mutableQuestion(ctx context.Context, templateID, questionID string, actor *model.Actor) (*model.Question, error) {
	t, err := s.load(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMutate(t, actor); err != nil {
		return nil, err
	}
	q := t.Question(questionID)
	if q == nil {
		return nil, apperror.NotFound("question", questionID)
	}
	if q.Fixed {
		return nil, apperror.ValidationFailed("questionId", "fixed questions cannot be changed or deleted")
	}
	return q, nil
}

// checkGrantees dedupes ids and makes sure each names an existing user.
func (s *TemplateService) checkGrantees(ctx context.Context, ids []string) ([]string, error) {
	ids = dedupe(ids)
	for _, id := range ids {
		if _, err := s.users.GetUserByID(ctx, id); err != nil {
			if isNotFound(err) {
				return nil, apperror.ValidationFailed("access", fmt.Sprintf("user %s does not exist", id))
			}
			return nil, storageError(s.logger, "checking grantee", err)
		}
	}
	return ids, nil
}

func (s *TemplateService) notifyGrantees(ctx context.Context, t *model.Template, userIDs []string) {
	for _, userID := range userIDs {
		if userID == t.CreatedBy {
			continue
		}
		s.notifier.Emit(ctx, userID, fmt.Sprintf("You were given access to the template %q", t.Title))
	}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return "", apperror.ValidationFailed("title", fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return title, nil
}

func validateQuestionType(qt model.QuestionType) error {
	if qt.Fixed() {
		return apperror.ValidationFailed("type", fmt.Sprintf("%s questions are added automatically", qt))
	}
	if !qt.UserSelectable() {
		return apperror.ValidationFailed("type", fmt.Sprintf("unknown question type %q", qt))
	}
	return nil
}

// buildQuestions turns create-time fields into questions at orders
// 0..n-1 and appends the fixed user and date questions.
func buildQuestions(fields []model.FieldInput) ([]model.Question, error) {
	counts := make(map[model.QuestionType]int)
	questions := make([]model.Question, 0, len(fields)+2)

	for i, f := range fields {
		if err := validateQuestionType(f.Type); err != nil {
			return nil, err
		}
		title := strings.TrimSpace(f.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("fields", fmt.Sprintf("field %d needs a title", i+1))
		}
		counts[f.Type]++
		if counts[f.Type] > MaxQuestionsPerType {
			return nil, apperror.ValidationFailed("fields",
				fmt.Sprintf("a template can hold at most %d %s questions", MaxQuestionsPerType, f.Type))
		}
		questions = append(questions, model.Question{
			Type:     f.Type,
			Title:    title,
			Order:    i,
			Required: f.Required,
		})
	}

	questions = append(questions,
		model.Question{Type: model.QuestionFixedUser, Title: "User", Order: model.FixedUserOrder, Fixed: true, Required: true},
		model.Question{Type: model.QuestionFixedDate, Title: "Date", Order: model.FixedDateOrder, Fixed: true, Required: true},
	)
	return questions, nil
}

func normalizeTags(tags []string) ([]string, error) {
	out := dedupe(tags)
	if len(out) > MaxTagsPerTemplate {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTagsPerTemplate))
	}
	return out, nil
}

func nextOrder(questions []model.Question) int {
	next := 0
	for _, q := range questions {
		if !q.Fixed && q.Order >= next {
			next = q.Order + 1
		}
	}
	return next
}
