// Package access decides who may read, change or take part in a template.
//
// There are three predicates, from weakest to strongest:
//
//	CanRead        public, creator, grantee or admin; anonymous only if public
//	CanParticipate CanRead and not the creator (submit forms, comment, like)
//	CanMutate      creator or admin (update, delete, questions, sharing)
//
// The Require* variants turn a failed check into the matching apperror so
// callers can tell Unauthenticated, Forbidden and NotFound apart.
package access

import (
	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
)

// CanRead is the single read predicate reused for template reads, form
// visibility and comment reads.
func CanRead(t *model.Template, actor *model.Actor) bool {
	if t.IsPublic {
		return true
	}
	if actor == nil {
		return false
	}
	return actor.ID == t.CreatedBy || t.HasGrant(actor.ID) || actor.IsAdmin
}

// CanMutate is true for the creator and for admins. Grantees never qualify.
func CanMutate(t *model.Template, actor *model.Actor) bool {
	if actor == nil {
		return false
	}
	return actor.ID == t.CreatedBy || actor.IsAdmin
}

// IsCreator reports whether actor created t.
func IsCreator(t *model.Template, actor *model.Actor) bool {
	return actor != nil && actor.ID == t.CreatedBy
}

// CanParticipate layers the creator exclusion on top of CanRead.
func CanParticipate(t *model.Template, actor *model.Actor) bool {
	return actor != nil && !IsCreator(t, actor) && CanRead(t, actor)
}

// RequireRead returns nil when actor may read t.
func RequireRead(t *model.Template, actor *model.Actor) error {
	if CanRead(t, actor) {
		return nil
	}
	if actor == nil {
		return apperror.Unauthenticated("authentication required to view this template")
	}
	return apperror.Forbidden("you do not have access to this template")
}

// RequireMutate returns nil when actor may change t's structure.
func RequireMutate(t *model.Template, actor *model.Actor) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	if !CanMutate(t, actor) {
		return apperror.Forbidden("only the template creator or an admin can change this template")
	}
	return nil
}

// RequireParticipate returns nil when actor may submit to, comment on or
// like t. The creator check comes first so it wins over grants and admin.
func RequireParticipate(t *model.Template, actor *model.Actor) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	if IsCreator(t, actor) {
		return apperror.Forbidden("template creators cannot respond to their own template")
	}
	if !CanRead(t, actor) {
		return apperror.Forbidden("you do not have access to this template")
	}
	return nil
}

// CanManageForm is true for the submitter, the template's creator and
// admins. It gates form reads, updates and deletes.
func CanManageForm(t *model.Template, f *model.Form, actor *model.Actor) bool {
	if actor == nil {
		return false
	}
	return actor.ID == f.UserID || actor.ID == t.CreatedBy || actor.IsAdmin
}

func RequireManageForm(t *model.Template, f *model.Form, actor *model.Actor) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	if !CanManageForm(t, f, actor) {
		return apperror.Forbidden("only the submitter, the template creator or an admin can access this form")
	}
	return nil
}

// RequireAdmin gates user administration.
func RequireAdmin(actor *model.Actor) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	if !actor.IsAdmin {
		return apperror.Forbidden("admin access required")
	}
	return nil
}
