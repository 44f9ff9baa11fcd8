package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if user.ID == "" {
		t.Error("CreateUser() did not set ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set CreatedAt")
	}
	if user.Status != model.UserActive {
		t.Errorf("Status = %q, want %q", user.Status, model.UserActive)
	}
	if user.Theme != "light" || user.Language != "en" {
		t.Errorf("preferences = %q/%q, want light/en", user.Theme, user.Language)
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "ann")

	err := db.CreateUser(context.Background(), &model.User{Name: "Other", Email: "ann@example.com"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() error = %v, want ErrConflict", err)
	}
}

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "ann")

	found, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Email != "ann@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "ann@example.com")
	}
	if found.GitHubID != nil {
		t.Errorf("GitHubID = %v, want nil", *found.GitHubID)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "ann")

	found, err := db.GetUserByEmail(context.Background(), "ann@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
}

func TestUserUpsert_NewUser(t *testing.T) {
	db := newTestDB(t)

	gh := int64(42)
	user := &model.User{Name: "Octo", Email: "octo@example.com", GitHubID: &gh}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if user.ID == "" {
		t.Fatal("Upsert() did not set ID")
	}

	found, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.GitHubID == nil || *found.GitHubID != 42 {
		t.Errorf("GitHubID = %v, want 42", found.GitHubID)
	}
}

func TestUserUpsert_LinksExistingAccount(t *testing.T) {
	db := newTestDB(t)
	existing := createTestUser(t, db, "ann")

	gh := int64(7)
	user := &model.User{Name: "ignored", Email: "ann@example.com", GitHubID: &gh}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if user.ID != existing.ID {
		t.Errorf("Upsert() created a new account %q, want %q", user.ID, existing.ID)
	}
	if user.Name != "ann" {
		t.Errorf("Name = %q, want existing name kept", user.Name)
	}
	if user.PasswordHash != "hash" {
		t.Error("Upsert() dropped the password hash")
	}
}

func TestUserList_Pagination(t *testing.T) {
	db := newTestDB(t)
	for _, name := range []string{"a", "b", "c"} {
		createTestUser(t, db, name)
	}

	page, err := db.ListUsers(context.Background(), repository.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len = %d, want 2", len(page))
	}

	rest, err := db.ListUsers(context.Background(), repository.ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("len = %d, want 1", len(rest))
	}
}

func TestUserUpdate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ann")

	user.Status = model.UserBlocked
	user.Theme = "dark"
	if err := db.UpdateUser(context.Background(), user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	found, _ := db.GetUserByID(context.Background(), user.ID)
	if found.Status != model.UserBlocked || found.Theme != "dark" {
		t.Errorf("got status=%q theme=%q", found.Status, found.Theme)
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUser(context.Background(), &model.User{ID: "missing", Email: "x@example.com"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrNotFound", err)
	}
}

func TestUserDelete(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ann")
	if err := db.CreateNotification(context.Background(), &model.Notification{UserID: user.ID, Message: "hi"}); err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}

	if err := db.DeleteUser(context.Background(), user.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if _, err := db.GetUserByID(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("user still present after delete: %v", err)
	}
}

func TestUserDelete_StillReferenced(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ann")
	createTestTemplate(t, db, user)

	err := db.DeleteUser(context.Background(), user.ID)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("DeleteUser() error = %v, want ErrConflict", err)
	}
}
