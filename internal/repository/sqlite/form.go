package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

var _ repository.FormRepository = (*DB)(nil)

const formSelect = `
	SELECT f.id, f.template_id, f.user_id, u.name, f.created_at
	FROM forms f
	JOIN users u ON u.id = f.user_id`

func scanForm(row rowScanner) (*model.Form, error) {
	var f model.Form
	if err := row.Scan(&f.ID, &f.TemplateID, &f.UserID, &f.SubmitterName, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.Answers = []model.Answer{}
	return &f, nil
}

// CreateForm inserts the form row and all of its answers atomically.
func (db *DB) CreateForm(ctx context.Context, f *model.Form) error {
	f.ID = xid.New().String()
	f.CreatedAt = time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO forms (id, template_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
			f.ID, f.TemplateID, f.UserID, f.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting form: %w", err)
		}
		return insertAnswers(ctx, tx, f.ID, f.Answers)
	})
	if err != nil && isForeignKeyViolation(err) {
		return apperror.ValidationFailed("answers", "form refers to an unknown template, user or question")
	}
	return err
}

func (db *DB) GetForm(ctx context.Context, id string) (*model.Form, error) {
	f, err := scanForm(db.conn.QueryRowContext(ctx, formSelect+` WHERE f.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("form", id)
		}
		return nil, fmt.Errorf("sqlite: getting form %s: %w", id, err)
	}

	answers, err := db.queryAnswers(ctx, `WHERE a.form_id = ?`, id)
	if err != nil {
		return nil, err
	}
	f.Answers = answers[id]
	if f.Answers == nil {
		f.Answers = []model.Answer{}
	}
	return f, nil
}

// ListFormsByTemplate returns every form of a template, oldest first,
// with answers attached.
func (db *DB) ListFormsByTemplate(ctx context.Context, templateID string) ([]model.Form, error) {
	forms, err := db.queryForms(ctx, formSelect+` WHERE f.template_id = ? ORDER BY f.created_at ASC, f.id ASC`, templateID)
	if err != nil {
		return nil, err
	}
	answers, err := db.queryAnswers(ctx,
		`JOIN forms f ON f.id = a.form_id WHERE f.template_id = ?`, templateID)
	if err != nil {
		return nil, err
	}
	attachAnswers(forms, answers)
	return forms, nil
}

// ListFormsByUser returns the user's submissions, newest first.
func (db *DB) ListFormsByUser(ctx context.Context, userID string) ([]model.Form, error) {
	forms, err := db.queryForms(ctx, formSelect+` WHERE f.user_id = ? ORDER BY f.created_at DESC, f.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	answers, err := db.queryAnswers(ctx,
		`JOIN forms f ON f.id = a.form_id WHERE f.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	attachAnswers(forms, answers)
	return forms, nil
}

// ReplaceAnswers deletes all answers of a form and inserts the new set.
func (db *DB) ReplaceAnswers(ctx context.Context, formID string, answers []model.Answer) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms WHERE id = ?`, formID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("sqlite: checking form %s: %w", formID, err)
		}
		if exists == 0 {
			return apperror.NotFound("form", formID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE form_id = ?`, formID); err != nil {
			return fmt.Errorf("sqlite: clearing answers of %s: %w", formID, err)
		}
		return insertAnswers(ctx, tx, formID, answers)
	})
}

func (db *DB) DeleteForm(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE form_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting answers of form %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting form %s: %w", id, err)
		}
		return checkAffected(res, "form", id)
	})
}

func insertAnswers(ctx context.Context, tx *sql.Tx, formID string, answers []model.Answer) error {
	for i := range answers {
		a := &answers[i]
		a.ID = xid.New().String()
		a.FormID = formID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (id, form_id, question_id, value) VALUES (?, ?, ?, ?)`,
			a.ID, a.FormID, a.QuestionID, a.Value,
		); err != nil {
			return fmt.Errorf("sqlite: inserting answer for question %s: %w", a.QuestionID, err)
		}
	}
	return nil
}

func (db *DB) queryForms(ctx context.Context, query string, args ...any) ([]model.Form, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing forms: %w", err)
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning form row: %w", err)
		}
		forms = append(forms, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating forms: %w", err)
	}
	return forms, nil
}

// queryAnswers loads answers grouped by form id. clause is appended after
// "FROM answers a" and may join forms as f.
func (db *DB) queryAnswers(ctx context.Context, clause string, args ...any) (map[string][]model.Answer, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT a.id, a.form_id, a.question_id, a.value FROM answers a `+clause+` ORDER BY a.rowid`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing answers: %w", err)
	}
	defer rows.Close()

	byForm := make(map[string][]model.Answer)
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.FormID, &a.QuestionID, &a.Value); err != nil {
			return nil, fmt.Errorf("sqlite: scanning answer row: %w", err)
		}
		byForm[a.FormID] = append(byForm[a.FormID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating answers: %w", err)
	}
	return byForm, nil
}

func attachAnswers(forms []model.Form, byForm map[string][]model.Answer) {
	for i := range forms {
		if answers, ok := byForm[forms[i].ID]; ok {
			forms[i].Answers = answers
		}
	}
}
