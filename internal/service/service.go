// Package service holds the business rules. Handlers call services with
// plain values; services check access, validate, and call repositories.
//
// Every error a service returns is an *apperror.AppError. Repository
// errors that are not already one (driver failures) are logged and
// wrapped with apperror.Storage so the HTTP layer can answer with a
// generic 500.
package service

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// validate is shared; validator caches struct metadata and is safe for
// concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// storageError passes AppErrors through unchanged and wraps everything
// else as a storage failure, logging the cause.
func storageError(logger *slog.Logger, op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	logger.Error(op+" failed", slog.String("error", err.Error()))
	return apperror.Storage(op, err)
}

func clampPage(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

// normalizeEmail trims and lowercases; emails are unique case-insensitively.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// dedupe trims entries, drops empties and keeps first occurrences in order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
