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

var (
	_ repository.CommentRepository = (*DB)(nil)
	_ repository.LikeRepository    = (*DB)(nil)
)

const commentSelect = `
	SELECT c.id, c.template_id, c.user_id, u.name, c.content, c.created_at
	FROM comments c
	JOIN users u ON u.id = c.user_id`

func scanComment(row rowScanner) (*model.Comment, error) {
	var c model.Comment
	if err := row.Scan(&c.ID, &c.TemplateID, &c.UserID, &c.UserName, &c.Content, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, template_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TemplateID, c.UserID, c.Content, c.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("template", c.TemplateID)
		}
		return fmt.Errorf("sqlite: inserting comment: %w", err)
	}
	return nil
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(db.conn.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return c, nil
}

// ListComments returns a template's comments oldest first.
func (db *DB) ListComments(ctx context.Context, templateID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		commentSelect+` WHERE c.template_id = ? ORDER BY c.created_at ASC, c.id ASC`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

func (db *DB) DeleteComment(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	return checkAffected(res, "comment", id)
}

// AddLike records a like. A second like by the same user is a Conflict.
func (db *DB) AddLike(ctx context.Context, like *model.Like) error {
	like.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO likes (template_id, user_id, created_at) VALUES (?, ?, ?)`,
		like.TemplateID, like.UserID, like.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("like", like.TemplateID)
		}
		if isForeignKeyViolation(err) {
			return apperror.NotFound("template", like.TemplateID)
		}
		return fmt.Errorf("sqlite: inserting like: %w", err)
	}
	return nil
}

func (db *DB) RemoveLike(ctx context.Context, templateID, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM likes WHERE template_id = ? AND user_id = ?`,
		templateID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting like: %w", err)
	}
	return checkAffected(res, "like", templateID)
}

func (db *DB) HasLiked(ctx context.Context, templateID, userID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE template_id = ? AND user_id = ?`,
		templateID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking like: %w", err)
	}
	return n > 0, nil
}
