package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

var _ repository.QuestionRepository = (*DB)(nil)

const questionColumns = `id, template_id, type, title, position, fixed, required`

func scanQuestion(row rowScanner) (*model.Question, error) {
	var q model.Question
	if err := row.Scan(&q.ID, &q.TemplateID, &q.Type, &q.Title, &q.Order, &q.Fixed, &q.Required); err != nil {
		return nil, err
	}
	return &q, nil
}

func insertQuestion(ctx context.Context, q querier, question *model.Question) error {
	question.ID = xid.New().String()
	_, err := q.ExecContext(ctx,
		`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		question.ID,
		question.TemplateID,
		question.Type,
		question.Title,
		question.Order,
		question.Fixed,
		question.Required,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting question: %w", err)
	}
	return nil
}

// listQuestions returns a template's questions in display order; the
// fixed ones (-2, -1) come first.
func listQuestions(ctx context.Context, q querier, templateID string) ([]model.Question, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE template_id = ?
		 ORDER BY position ASC, id ASC`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing questions of %s: %w", templateID, err)
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning question row: %w", err)
		}
		questions = append(questions, *question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating questions: %w", err)
	}
	return questions, nil
}

// CountQuestionsByType counts the non-fixed questions of one type.
func (db *DB) CountQuestionsByType(ctx context.Context, templateID string, qt model.QuestionType) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE template_id = ? AND type = ? AND fixed = 0`,
		templateID, qt,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting %s questions of %s: %w", qt, templateID, err)
	}
	return n, nil
}

// CreateQuestion inserts a user question at q.Order. Questions already at
// or after that order move down one place in the same transaction.
func (db *DB) CreateQuestion(ctx context.Context, q *model.Question) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if !q.Fixed {
			if _, err := tx.ExecContext(ctx,
				`UPDATE questions SET position = position + 1
				 WHERE template_id = ? AND fixed = 0 AND position >= ?`,
				q.TemplateID, q.Order,
			); err != nil {
				return fmt.Errorf("sqlite: shifting questions of %s: %w", q.TemplateID, err)
			}
		}
		return insertQuestion(ctx, tx, q)
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("template", q.TemplateID)
		}
		return err
	}
	return nil
}

func (db *DB) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	q, err := scanQuestion(db.conn.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("question", id)
		}
		return nil, fmt.Errorf("sqlite: getting question %s: %w", id, err)
	}
	return q, nil
}

// UpdateQuestion changes title and required flag. Type, order and the
// fixed flag are not writable here.
func (db *DB) UpdateQuestion(ctx context.Context, q *model.Question) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE questions SET title = ?, required = ? WHERE id = ?`,
		q.Title, q.Required, q.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating question %s: %w", q.ID, err)
	}
	return checkAffected(res, "question", q.ID)
}

// DeleteQuestion removes the question together with any answers to it.
func (db *DB) DeleteQuestion(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE question_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting answers of question %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting question %s: %w", id, err)
		}
		return checkAffected(res, "question", id)
	})
}

// ReorderQuestions sets position i on orderedIDs[i]. User questions left
// out of the list follow the listed ones, keeping their relative order, so
// every user question ends with a distinct position. Each update is scoped
// to the template and to non-fixed questions; if any id misses, the whole
// transaction rolls back and no order changes.
func (db *DB) ReorderQuestions(ctx context.Context, templateID string, orderedIDs []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := userQuestionIDs(ctx, tx, templateID)
		if err != nil {
			return err
		}

		listed := make(map[string]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			listed[id] = true
		}
		final := append([]string{}, orderedIDs...)
		for _, id := range current {
			if !listed[id] {
				final = append(final, id)
			}
		}

		for i, id := range final {
			res, err := tx.ExecContext(ctx,
				`UPDATE questions SET position = ? WHERE id = ? AND template_id = ? AND fixed = 0`,
				i, id, templateID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: reordering question %s: %w", id, err)
			}
			if err := checkAffected(res, "question", id); err != nil {
				return err
			}
		}
		return nil
	})
}

// userQuestionIDs lists a template's non-fixed question ids in display order.
func userQuestionIDs(ctx context.Context, q querier, templateID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM questions WHERE template_id = ? AND fixed = 0 ORDER BY position ASC, id ASC`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing question ids of %s: %w", templateID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating question ids: %w", err)
	}
	return ids, nil
}
