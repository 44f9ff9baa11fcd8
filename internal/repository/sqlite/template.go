package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

var _ repository.TemplateRepository = (*DB)(nil)

// templateSelect joins the creator name and the like/form counters so a
// single row is enough to render a template card.
const templateSelect = `
	SELECT t.id, t.title, t.description, t.topic, t.image_url, t.is_public,
	       t.created_by, u.name, t.created_at,
	       (SELECT COUNT(*) FROM likes l WHERE l.template_id = t.id),
	       (SELECT COUNT(*) FROM forms f WHERE f.template_id = t.id)
	FROM templates t
	JOIN users u ON u.id = t.created_by`

func scanTemplate(row rowScanner) (*model.Template, error) {
	var t model.Template
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Topic,
		&t.ImageURL,
		&t.IsPublic,
		&t.CreatedBy,
		&t.CreatorName,
		&t.CreatedAt,
		&t.LikeCount,
		&t.FormCount,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTemplate inserts the template with its questions, tags and
// access grants in one transaction.
func (db *DB) CreateTemplate(ctx context.Context, t *model.Template) error {
	t.ID = xid.New().String()
	t.CreatedAt = time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO templates (id, title, description, topic, image_url, is_public, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Description, t.Topic, t.ImageURL, t.IsPublic, t.CreatedBy, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting template: %w", err)
		}

		for i := range t.Questions {
			q := &t.Questions[i]
			q.TemplateID = t.ID
			if err := insertQuestion(ctx, tx, q); err != nil {
				return err
			}
		}

		if err := linkTags(ctx, tx, t.ID, t.Tags); err != nil {
			return err
		}
		return insertAccess(ctx, tx, t.ID, t.Access)
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("access", "template refers to an unknown user")
		}
		return err
	}
	return nil
}

// GetTemplate loads a template with all the children a read view needs.
func (db *DB) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	t, err := scanTemplate(db.conn.QueryRowContext(ctx, templateSelect+` WHERE t.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("template", id)
		}
		return nil, fmt.Errorf("sqlite: getting template %s: %w", id, err)
	}

	if t.Questions, err = listQuestions(ctx, db.conn, id); err != nil {
		return nil, err
	}
	if err := db.loadTagsAndAccess(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTemplates returns templates matching the filter. Questions are not
// loaded; tags and access grants are, since callers filter on access.
func (db *DB) ListTemplates(ctx context.Context, filter model.TemplateFilter) ([]model.Template, error) {
	var (
		where []string
		args  []any
	)
	if filter.Topic != "" {
		where = append(where, "t.topic = ?")
		args = append(args, filter.Topic)
	}
	if filter.CreatedBy != "" {
		where = append(where, "t.created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		where = append(where, `(t.title LIKE ? ESCAPE '\' OR t.description LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Tag != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM template_tags tt JOIN tags g ON g.id = tt.tag_id
			WHERE tt.template_id = t.id AND g.name = ?)`)
		args = append(args, filter.Tag)
	}

	query := templateSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Sort == "popular" {
		query += " ORDER BY 11 DESC, t.created_at DESC"
	} else {
		query += " ORDER BY t.created_at DESC, t.id DESC"
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing templates: %w", err)
	}

	templates := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning template row: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating templates: %w", err)
	}
	// Close before the per-template queries: the pool has one connection.
	rows.Close()

	for i := range templates {
		templates[i].Questions = []model.Question{}
		if err := db.loadTagsAndAccess(ctx, &templates[i]); err != nil {
			return nil, err
		}
	}
	return templates, nil
}

// UpdateTemplate replaces scalar fields, then fully replaces tag links and
// access grants. All of it commits or none of it does.
func (db *DB) UpdateTemplate(ctx context.Context, t *model.Template) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE templates
			 SET title = ?, description = ?, topic = ?, image_url = ?, is_public = ?
			 WHERE id = ?`,
			t.Title, t.Description, t.Topic, t.ImageURL, t.IsPublic, t.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating template %s: %w", t.ID, err)
		}
		if err := checkAffected(res, "template", t.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM template_tags WHERE template_id = ?`, t.ID); err != nil {
			return fmt.Errorf("sqlite: unlinking tags of %s: %w", t.ID, err)
		}
		if err := linkTags(ctx, tx, t.ID, t.Tags); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM template_access WHERE template_id = ?`, t.ID); err != nil {
			return fmt.Errorf("sqlite: clearing access of %s: %w", t.ID, err)
		}
		return insertAccess(ctx, tx, t.ID, t.Access)
	})
	if err != nil && isForeignKeyViolation(err) {
		return apperror.ValidationFailed("access", "template refers to an unknown user")
	}
	return err
}

// DeleteTemplate removes a template and everything it owns, children
// first, inside one transaction.
func (db *DB) DeleteTemplate(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			what  string
			query string
		}{
			{"answers", `DELETE FROM answers WHERE form_id IN (SELECT id FROM forms WHERE template_id = ?)`},
			{"forms", `DELETE FROM forms WHERE template_id = ?`},
			{"likes", `DELETE FROM likes WHERE template_id = ?`},
			{"comments", `DELETE FROM comments WHERE template_id = ?`},
			{"access grants", `DELETE FROM template_access WHERE template_id = ?`},
			{"tag links", `DELETE FROM template_tags WHERE template_id = ?`},
			{"questions", `DELETE FROM questions WHERE template_id = ?`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
				return fmt.Errorf("sqlite: deleting %s of template %s: %w", step.what, id, err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting template %s: %w", id, err)
		}
		return checkAffected(res, "template", id)
	})
}

// SearchTags returns tag names starting with prefix, alphabetically.
func (db *DB) SearchTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name FROM tags WHERE name LIKE ? ESCAPE '\' ORDER BY name LIMIT ?`,
		escapeLike(prefix)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching tags: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (db *DB) loadTagsAndAccess(ctx context.Context, t *model.Template) error {
	var err error
	t.Tags, err = queryStrings(ctx, db.conn,
		`SELECT g.name FROM template_tags tt JOIN tags g ON g.id = tt.tag_id
		 WHERE tt.template_id = ? ORDER BY g.name`, t.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading tags of %s: %w", t.ID, err)
	}
	t.Access, err = queryStrings(ctx, db.conn,
		`SELECT user_id FROM template_access WHERE template_id = ? ORDER BY user_id`, t.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading access of %s: %w", t.ID, err)
	}
	return nil
}

// linkTags creates missing tags by name and links every one to the template.
func linkTags(ctx context.Context, tx *sql.Tx, templateID string, names []string) error {
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
			xid.New().String(), name,
		); err != nil {
			return fmt.Errorf("sqlite: upserting tag %q: %w", name, err)
		}

		var tagID string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); err != nil {
			return fmt.Errorf("sqlite: resolving tag %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO template_tags (template_id, tag_id) VALUES (?, ?)`,
			templateID, tagID,
		); err != nil {
			return fmt.Errorf("sqlite: linking tag %q: %w", name, err)
		}
	}
	return nil
}

func insertAccess(ctx context.Context, tx *sql.Tx, templateID string, userIDs []string) error {
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO template_access (template_id, user_id) VALUES (?, ?)`,
			templateID, userID,
		); err != nil {
			return fmt.Errorf("sqlite: granting %s access to %s: %w", userID, templateID, err)
		}
	}
	return nil
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
