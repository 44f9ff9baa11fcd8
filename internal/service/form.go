package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/formbuilder/internal/access"
	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/metrics"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

// FormService accepts, changes and lists submissions.
type FormService struct {
	templates repository.TemplateRepository
	forms     repository.FormRepository
	users     repository.UserRepository
	notifier  *NotificationService
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewFormService(
	templates repository.TemplateRepository,
	forms repository.FormRepository,
	users repository.UserRepository,
	notifier *NotificationService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *FormService {
	return &FormService{
		templates: templates,
		forms:     forms,
		users:     users,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit stores a new form. The creator may never submit to their own
// template; everyone else needs read access. The fixed user and date
// answers are filled in here and cannot be supplied by the caller.
func (s *FormService) Submit(ctx context.Context, templateID string, actor *model.Actor, inputs []model.AnswerInput) (*model.Form, error) {
	t, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireParticipate(t, actor); err != nil {
		return nil, err
	}

	answers, err := s.buildAnswers(t, inputs, actor.Email)
	if err != nil {
		return nil, err
	}

	f := &model.Form{TemplateID: t.ID, UserID: actor.ID, Answers: answers}
	if err := s.forms.CreateForm(ctx, f); err != nil {
		return nil, storageError(s.logger, "creating form", err)
	}

	s.metrics.FormSubmitted()
	s.logger.Info("form submitted",
		slog.String("formID", f.ID),
		slog.String("templateID", t.ID),
		slog.String("by", actor.ID),
	)

	if t.CreatedBy != actor.ID {
		s.notifier.Emit(ctx, t.CreatedBy, fmt.Sprintf("%s submitted a response to %q", actor.Email, t.Title))
	}

	return s.loadForm(ctx, f.ID)
}

// Update replaces every answer of the form. The fixed answers are written
// again with the original submitter's email and the current time.
func (s *FormService) Update(ctx context.Context, formID string, actor *model.Actor, inputs []model.AnswerInput) (*model.Form, error) {
	f, t, err := s.loadManaged(ctx, formID, actor)
	if err != nil {
		return nil, err
	}

	submitter, err := s.users.GetUserByID(ctx, f.UserID)
	if err != nil {
		return nil, storageError(s.logger, "loading submitter", err)
	}

	answers, err := s.buildAnswers(t, inputs, submitter.Email)
	if err != nil {
		return nil, err
	}
	if err := s.forms.ReplaceAnswers(ctx, f.ID, answers); err != nil {
		return nil, storageError(s.logger, "replacing answers", err)
	}

	s.logger.Info("form updated", slog.String("formID", f.ID), slog.String("by", actor.ID))
	return s.loadForm(ctx, f.ID)
}

func (s *FormService) Delete(ctx context.Context, formID string, actor *model.Actor) error {
	f, _, err := s.loadManaged(ctx, formID, actor)
	if err != nil {
		return err
	}
	if err := s.forms.DeleteForm(ctx, f.ID); err != nil {
		return storageError(s.logger, "deleting form", err)
	}
	s.logger.Info("form deleted", slog.String("formID", f.ID), slog.String("by", actor.ID))
	return nil
}

// Get is open to the submitter, the template creator and admins.
func (s *FormService) Get(ctx context.Context, formID string, actor *model.Actor) (*model.Form, error) {
	f, _, err := s.loadManaged(ctx, formID, actor)
	return f, err
}

// ListForTemplate applies the template read predicate. Creators and
// admins see every form; anyone else sees only their own.
func (s *FormService) ListForTemplate(ctx context.Context, templateID string, actor *model.Actor) ([]model.Form, error) {
	t, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireRead(t, actor); err != nil {
		return nil, err
	}

	forms, err := s.forms.ListFormsByTemplate(ctx, t.ID)
	if err != nil {
		return nil, storageError(s.logger, "listing forms", err)
	}
	if access.CanMutate(t, actor) {
		return forms, nil
	}

	own := []model.Form{}
	for _, f := range forms {
		if actor != nil && f.UserID == actor.ID {
			own = append(own, f)
		}
	}
	return own, nil
}

// ListMine returns the actor's own submissions, newest first.
func (s *FormService) ListMine(ctx context.Context, actor *model.Actor) ([]model.Form, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	forms, err := s.forms.ListFormsByUser(ctx, actor.ID)
	if err != nil {
		return nil, storageError(s.logger, "listing forms", err)
	}
	return forms, nil
}

// buildAnswers validates inputs against t and appends the fixed answers.
// Nothing is written if any answer is rejected.
func (s *FormService) buildAnswers(t *model.Template, inputs []model.AnswerInput, submitterEmail string) ([]model.Answer, error) {
	answers := make([]model.Answer, 0, len(inputs)+2)
	seen := make(map[string]bool, len(inputs))

	for _, in := range inputs {
		q := t.Question(in.QuestionID)
		if q == nil {
			return nil, apperror.ValidationFailed("answers", fmt.Sprintf("question %s does not belong to this template", in.QuestionID))
		}
		if q.Fixed {
			return nil, apperror.ValidationFailed("answers", fmt.Sprintf("question %s is filled in automatically", q.ID))
		}
		if seen[q.ID] {
			return nil, apperror.ValidationFailed("answers", fmt.Sprintf("question %s is answered twice", q.ID))
		}
		seen[q.ID] = true

		value, err := stringifyAnswer(in.Value)
		if err != nil {
			return nil, apperror.ValidationFailed("answers", fmt.Sprintf("question %s: %v", q.ID, err))
		}
		answers = append(answers, model.Answer{QuestionID: q.ID, Value: value})
	}

	for _, q := range t.Questions {
		if q.Fixed || !q.Required {
			continue
		}
		if !hasValue(answers, q.ID) {
			return nil, apperror.ValidationFailed("answers", fmt.Sprintf("question %q is required", q.Title))
		}
	}

	if q := t.FixedQuestion(model.QuestionFixedUser); q != nil {
		answers = append(answers, model.Answer{QuestionID: q.ID, Value: submitterEmail})
	}
	if q := t.FixedQuestion(model.QuestionFixedDate); q != nil {
		answers = append(answers, model.Answer{QuestionID: q.ID, Value: s.now().UTC().Format(time.RFC3339Nano)})
	}
	return answers, nil
}

// stringifyAnswer stores every value as text: strings as-is, booleans as
// "true"/"false", numbers in their shortest decimal form.
func stringifyAnswer(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", fmt.Errorf("value is missing")
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func hasValue(answers []model.Answer, questionID string) bool {
	for _, a := range answers {
		if a.QuestionID == questionID && strings.TrimSpace(a.Value) != "" {
			return true
		}
	}
	return false
}

func (s *FormService) loadTemplate(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return nil, storageError(s.logger, "loading template", err)
	}
	return t, nil
}

func (s *FormService) loadForm(ctx context.Context, id string) (*model.Form, error) {
	f, err := s.forms.GetForm(ctx, id)
	if err != nil {
		return nil, storageError(s.logger, "loading form", err)
	}
	return f, nil
}

// loadManaged loads a form and its template and checks that actor is the
// submitter, the creator or an admin.
func (s *FormService) loadManaged(ctx context.Context, formID string, actor *model.Actor) (*model.Form, *model.Template, error) {
	if actor == nil {
		return nil, nil, apperror.Unauthenticated("authentication required")
	}
	f, err := s.loadForm(ctx, formID)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.loadTemplate(ctx, f.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	if err := access.RequireManageForm(t, f, actor); err != nil {
		return nil, nil, err
	}
	return f, t, nil
}
