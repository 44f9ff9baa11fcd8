package service

import (
	"context"
	"log/slog"

	"github.com/sakif/formbuilder/internal/access"
	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

// UserService is the admin panel: list, block, promote and delete users.
// Every method requires an admin actor. Admins may act on themselves.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

func (s *UserService) List(ctx context.Context, actor *model.Actor, limit, offset int) ([]model.User, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx, clampPage(limit, offset))
	if err != nil {
		return nil, storageError(s.logger, "listing users", err)
	}
	return users, nil
}

func (s *UserService) SetStatus(ctx context.Context, actor *model.Actor, id string, status model.UserStatus) (*model.User, error) {
	if status != model.UserActive && status != model.UserBlocked {
		return nil, apperror.ValidationFailed("status", "status must be active or blocked")
	}
	return s.modify(ctx, actor, id, func(u *model.User) { u.Status = status })
}

func (s *UserService) SetAdmin(ctx context.Context, actor *model.Actor, id string, isAdmin bool) (*model.User, error) {
	return s.modify(ctx, actor, id, func(u *model.User) { u.IsAdmin = isAdmin })
}

// Delete removes a user. It fails with Conflict while the user still owns
// templates, forms, comments, likes or access grants.
func (s *UserService) Delete(ctx context.Context, actor *model.Actor, id string) error {
	if err := access.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return storageError(s.logger, "deleting user", err)
	}
	s.logger.Info("user deleted", slog.String("userID", id), slog.String("by", actor.ID))
	return nil
}

func (s *UserService) modify(ctx context.Context, actor *model.Actor, id string, apply func(*model.User)) (*model.User, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storageError(s.logger, "loading user", err)
	}
	apply(user)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storageError(s.logger, "updating user", err)
	}
	s.logger.Info("user updated by admin",
		slog.String("userID", id),
		slog.String("by", actor.ID),
		slog.String("status", string(user.Status)),
		slog.Bool("isAdmin", user.IsAdmin),
	)
	return user, nil
}
