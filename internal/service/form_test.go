package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
)

// surveyFixture is a public template with one question of each kind.
type surveyFixture struct {
	env      *testEnv
	creator  *model.Actor
	tmpl     *model.Template
	name     model.Question // single_line, required
	age      model.Question // positive_integer
	agree    model.Question // checkbox
	fixedUsr model.Question
	fixedDt  model.Question
}

func newSurveyFixture(t *testing.T) *surveyFixture {
	t.Helper()
	env := newTestEnv(t)
	creator := env.newActor(t, "creator", false)
	tmpl := env.newTemplate(t, creator,
		model.FieldInput{Type: model.QuestionSingleLine, Title: "Name", Required: true},
		model.FieldInput{Type: model.QuestionPositiveInteger, Title: "Age"},
		model.FieldInput{Type: model.QuestionCheckbox, Title: "Agree"},
	)
	qs := userQuestions(tmpl)
	return &surveyFixture{
		env:      env,
		creator:  creator,
		tmpl:     tmpl,
		name:     qs[0],
		age:      qs[1],
		agree:    qs[2],
		fixedUsr: *tmpl.FixedQuestion(model.QuestionFixedUser),
		fixedDt:  *tmpl.FixedQuestion(model.QuestionFixedDate),
	}
}

func (f *surveyFixture) answers(name string, age any, agree any) []model.AnswerInput {
	return []model.AnswerInput{
		{QuestionID: f.name.ID, Value: name},
		{QuestionID: f.age.ID, Value: age},
		{QuestionID: f.agree.ID, Value: agree},
	}
}

func TestSubmitForm(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	respondent := f.env.newActor(t, "resp", false)

	submitted := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	f.env.forms.now = func() time.Time { return submitted }

	form, err := f.env.forms.Submit(ctx, f.tmpl.ID, respondent, f.answers("Ann", float64(30), true))
	require.NoError(t, err)

	assert.Equal(t, respondent.ID, form.UserID)
	assert.Equal(t, "resp", form.SubmitterName)
	want := map[string]string{
		f.name.ID:     "Ann",
		f.age.ID:      "30",
		f.agree.ID:    "true",
		f.fixedUsr.ID: "resp@example.com",
		f.fixedDt.ID:  submitted.Format(time.RFC3339Nano),
	}
	for qid, value := range want {
		got, ok := form.Answer(qid)
		assert.True(t, ok, qid)
		assert.Equal(t, value, got, qid)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.env.metrics.FormsSubmitted))

	notes, err := f.env.notifications.List(ctx, f.creator, 0, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "resp@example.com")
}

func TestSubmitForm_AccessRules(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	admin := f.env.newActor(t, "admin", true)

	_, err := f.env.forms.Submit(ctx, f.tmpl.ID, f.creator, f.answers("Me", "1", false))
	assert.ErrorIs(t, err, apperror.ErrForbidden, "creators cannot answer their own template")

	_, err = f.env.forms.Submit(ctx, f.tmpl.ID, nil, f.answers("Anon", "1", false))
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	_, err = f.env.forms.Submit(ctx, "missing", admin, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	private, err := f.env.templates.Create(ctx, f.creator, TemplateInput{Title: "Private", Topic: model.TopicOther})
	require.NoError(t, err)
	stranger := f.env.newActor(t, "stranger", false)
	_, err = f.env.forms.Submit(ctx, private.ID, stranger, nil)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.env.forms.Submit(ctx, private.ID, admin, nil)
	assert.NoError(t, err, "admins can answer templates they did not create")
}

func TestSubmitForm_Validation(t *testing.T) {
	f := newSurveyFixture(t)
	respondent := f.env.newActor(t, "resp", false)

	tests := []struct {
		name    string
		answers []model.AnswerInput
	}{
		{"missing required", []model.AnswerInput{{QuestionID: f.age.ID, Value: "3"}}},
		{"blank required", f.answers("  ", "3", true)},
		{"unknown question", append(f.answers("A", "3", true), model.AnswerInput{QuestionID: "ghost", Value: "x"})},
		{"fixed question", append(f.answers("A", "3", true), model.AnswerInput{QuestionID: f.fixedUsr.ID, Value: "me"})},
		{"duplicate answer", append(f.answers("A", "3", true), model.AnswerInput{QuestionID: f.name.ID, Value: "B"})},
		{"null value", f.answers("A", nil, true)},
		{"object value", f.answers("A", map[string]any{"n": 1}, true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.env.forms.Submit(context.Background(), f.tmpl.ID, respondent, tt.answers)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}

	forms, err := f.env.forms.ListMine(context.Background(), respondent)
	require.NoError(t, err)
	assert.Empty(t, forms, "rejected submissions write nothing")
}

func TestSubmitForm_NotificationFailureIsSwallowed(t *testing.T) {
	f := newSurveyFixture(t)
	respondent := f.env.newActor(t, "resp", false)

	failing := NewNotificationService(failingNotificationRepo{}, f.env.metrics, discardLogger())
	forms := NewFormService(f.env.db, f.env.db, f.env.db, failing, f.env.metrics, discardLogger())

	_, err := forms.Submit(context.Background(), f.tmpl.ID, respondent, f.answers("Ann", "1", false))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.env.metrics.Notifications.WithLabelValues("failed")))
}

func TestUpdateForm(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	respondent := f.env.newActor(t, "resp", false)
	stranger := f.env.newActor(t, "stranger", false)
	admin := f.env.newActor(t, "admin", true)

	form, err := f.env.forms.Submit(ctx, f.tmpl.ID, respondent, f.answers("Ann", "1", false))
	require.NoError(t, err)

	_, err = f.env.forms.Update(ctx, form.ID, stranger, f.answers("X", "2", true))
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.env.forms.Update(ctx, form.ID, respondent, f.answers("", "2", true))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	updated, err := f.env.forms.Update(ctx, form.ID, admin, []model.AnswerInput{{QuestionID: f.name.ID, Value: "Bea"}})
	require.NoError(t, err)

	name, _ := updated.Answer(f.name.ID)
	assert.Equal(t, "Bea", name)
	_, hasAge := updated.Answer(f.age.ID)
	assert.False(t, hasAge, "answers are replaced, not merged")
	user, _ := updated.Answer(f.fixedUsr.ID)
	assert.Equal(t, "resp@example.com", user, "fixed user answer stays the submitter's")
	assert.Len(t, updated.Answers, 3)
}

func TestGetAndDeleteForm(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	respondent := f.env.newActor(t, "resp", false)
	stranger := f.env.newActor(t, "stranger", false)

	form, err := f.env.forms.Submit(ctx, f.tmpl.ID, respondent, f.answers("Ann", "1", false))
	require.NoError(t, err)

	_, err = f.env.forms.Get(ctx, form.ID, f.creator)
	assert.NoError(t, err)
	_, err = f.env.forms.Get(ctx, form.ID, stranger)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.env.forms.Get(ctx, form.ID, nil)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	assert.ErrorIs(t, f.env.forms.Delete(ctx, form.ID, stranger), apperror.ErrForbidden)
	require.NoError(t, f.env.forms.Delete(ctx, form.ID, respondent))
	_, err = f.env.forms.Get(ctx, form.ID, respondent)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListFormsForTemplate(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	alice := f.env.newActor(t, "alice", false)
	bob := f.env.newActor(t, "bob", false)
	admin := f.env.newActor(t, "admin", true)

	for _, actor := range []*model.Actor{alice, bob} {
		_, err := f.env.forms.Submit(ctx, f.tmpl.ID, actor, f.answers(actor.Email, "1", true))
		require.NoError(t, err)
	}

	all, err := f.env.forms.ListForTemplate(ctx, f.tmpl.ID, f.creator)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	all, err = f.env.forms.ListForTemplate(ctx, f.tmpl.ID, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := f.env.forms.ListForTemplate(ctx, f.tmpl.ID, bob)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, bob.ID, own[0].UserID)

	anon, err := f.env.forms.ListForTemplate(ctx, f.tmpl.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, anon)
}

func TestStringifyAnswer(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"text", "text"},
		{true, "true"},
		{false, "false"},
		{float64(42), "42"},
		{2.5, "2.5"},
		{7, "7"},
	}
	for _, tt := range tests {
		got, err := stringifyAnswer(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := stringifyAnswer(nil)
	assert.Error(t, err)
	_, err = stringifyAnswer([]any{1})
	assert.Error(t, err)
}
