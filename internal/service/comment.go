package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/formbuilder/internal/access"
	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

const MaxCommentLength = 2000

// CommentService handles comments and likes. Both follow the
// participation rule: readable template, actor is not the creator.
type CommentService struct {
	templates repository.TemplateRepository
	comments  repository.CommentRepository
	likes     repository.LikeRepository
	logger    *slog.Logger
}

func NewCommentService(
	templates repository.TemplateRepository,
	comments repository.CommentRepository,
	likes repository.LikeRepository,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{templates: templates, comments: comments, likes: likes, logger: logger}
}

func (s *CommentService) Create(ctx context.Context, templateID string, actor *model.Actor, content string) (*model.Comment, error) {
	t, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireParticipate(t, actor); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment cannot be empty")
	}
	if len(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content", fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	c := &model.Comment{TemplateID: t.ID, UserID: actor.ID, Content: content}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return nil, storageError(s.logger, "creating comment", err)
	}

	created, err := s.comments.GetComment(ctx, c.ID)
	if err != nil {
		return nil, storageError(s.logger, "loading comment", err)
	}
	return created, nil
}

// List uses the template read predicate.
func (s *CommentService) List(ctx context.Context, templateID string, actor *model.Actor) ([]model.Comment, error) {
	t, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireRead(t, actor); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListComments(ctx, t.ID)
	if err != nil {
		return nil, storageError(s.logger, "listing comments", err)
	}
	return comments, nil
}

// Delete is allowed to the comment's author and to admins.
func (s *CommentService) Delete(ctx context.Context, commentID string, actor *model.Actor) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return storageError(s.logger, "loading comment", err)
	}
	if c.UserID != actor.ID && !actor.IsAdmin {
		return apperror.Forbidden("only the author or an admin can delete this comment")
	}
	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		return storageError(s.logger, "deleting comment", err)
	}
	return nil
}

// Like fails with Conflict when the actor already liked the template.
func (s *CommentService) Like(ctx context.Context, templateID string, actor *model.Actor) error {
	t, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if err := access.RequireParticipate(t, actor); err != nil {
		return err
	}
	if err := s.likes.AddLike(ctx, &model.Like{TemplateID: t.ID, UserID: actor.ID}); err != nil {
		return storageError(s.logger, "adding like", err)
	}
	return nil
}

// Unlike fails with NotFound when there is no like to remove.
func (s *CommentService) Unlike(ctx context.Context, templateID string, actor *model.Actor) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	if err := s.likes.RemoveLike(ctx, templateID, actor.ID); err != nil {
		return storageError(s.logger, "removing like", err)
	}
	return nil
}

func (s *CommentService) loadTemplate(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return nil, storageError(s.logger, "loading template", err)
	}
	return t, nil
}
