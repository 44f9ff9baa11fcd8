package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
)

func TestUserAdmin_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plain := env.newActor(t, "plain", false)

	_, err := env.users.List(ctx, plain, 0, 0)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = env.users.List(ctx, nil, 0, 0)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	_, err = env.users.SetAdmin(ctx, plain, plain.ID, true)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.ErrorIs(t, env.users.Delete(ctx, plain, plain.ID), apperror.ErrForbidden)
}

func TestUserAdmin_ListBlockPromote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.newActor(t, "admin", true)
	target := env.newActor(t, "target", false)

	users, err := env.users.List(ctx, admin, 0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	blocked, err := env.users.SetStatus(ctx, admin, target.ID, model.UserBlocked)
	require.NoError(t, err)
	assert.Equal(t, model.UserBlocked, blocked.Status)

	_, err = env.users.SetStatus(ctx, admin, target.ID, "banished")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	promoted, err := env.users.SetAdmin(ctx, admin, target.ID, true)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)

	demoted, err := env.users.SetAdmin(ctx, admin, admin.ID, false)
	require.NoError(t, err)
	assert.False(t, demoted.IsAdmin, "admins may demote themselves")

	_, err = env.users.SetAdmin(ctx, promoted.Actor(), "missing", true)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserAdmin_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.newActor(t, "admin", true)
	idle := env.newActor(t, "idle", false)
	author := env.newActor(t, "author", false)
	env.newTemplate(t, author)

	require.NoError(t, env.users.Delete(ctx, admin, idle.ID))
	assert.ErrorIs(t, env.users.Delete(ctx, admin, idle.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, env.users.Delete(ctx, admin, author.ID), apperror.ErrConflict)
}
