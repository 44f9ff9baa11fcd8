// Package repository declares the storage interfaces the services depend on.
//
// Multi-step writes (template creation, tag and access replacement,
// question reorder, answer replacement, cascading deletes) are single
// methods so an implementation can run each inside one transaction.
package repository

import (
	"context"

	"github.com/sakif/formbuilder/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// Upsert matches on email: existing accounts get their GitHub id
	// linked, new ones are inserted.
	Upsert(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

type TemplateRepository interface {
	// CreateTemplate inserts the template, its questions, tags and access
	// grants. IDs are written back into t.
	CreateTemplate(ctx context.Context, t *model.Template) error
	// GetTemplate loads the template with questions (ordered), tags,
	// access grants, creator name and like/form counts.
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	// ListTemplates returns candidates matching the filter's topic, tag,
	// search and creator, sorted; access filtering is the caller's job.
	ListTemplates(ctx context.Context, filter model.TemplateFilter) ([]model.Template, error)
	// UpdateTemplate replaces scalar fields, then fully replaces tags and
	// access grants, all in one transaction.
	UpdateTemplate(ctx context.Context, t *model.Template) error
	DeleteTemplate(ctx context.Context, id string) error
	SearchTags(ctx context.Context, prefix string, limit int) ([]string, error)
}

type QuestionRepository interface {
	// CountQuestionsByType counts non-fixed questions of qt in a template.
	CountQuestionsByType(ctx context.Context, templateID string, qt model.QuestionType) (int, error)
	// CreateQuestion inserts q at q.Order, moving later user questions
	// down one place.
	CreateQuestion(ctx context.Context, q *model.Question) error
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
	UpdateQuestion(ctx context.Context, q *model.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	// ReorderQuestions assigns order i to orderedIDs[i] and renumbers the
	// unlisted user questions after them. Every id must belong to the
	// template; otherwise nothing changes.
	ReorderQuestions(ctx context.Context, templateID string, orderedIDs []string) error
}

type FormRepository interface {
	// CreateForm inserts the form and all its answers atomically.
	CreateForm(ctx context.Context, f *model.Form) error
	GetForm(ctx context.Context, id string) (*model.Form, error)
	ListFormsByTemplate(ctx context.Context, templateID string) ([]model.Form, error)
	ListFormsByUser(ctx context.Context, userID string) ([]model.Form, error)
	// ReplaceAnswers deletes every answer of the form and inserts answers.
	ReplaceAnswers(ctx context.Context, formID string, answers []model.Answer) error
	DeleteForm(ctx context.Context, id string) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, templateID string) ([]model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type LikeRepository interface {
	AddLike(ctx context.Context, like *model.Like) error
	RemoveLike(ctx context.Context, templateID, userID string) error
	HasLiked(ctx context.Context, templateID, userID string) (bool, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, opts ListOptions) ([]model.Notification, error)
}
