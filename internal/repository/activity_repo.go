package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"library_api/internal/models"

	"github.com/google/uuid"
)

type ActivityRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewActivityRepository(db *sql.DB, d Dialect) *ActivityRepository {
	return &ActivityRepository{db: db, dialect: d}
}

var _ ActivityRepo = (*ActivityRepository)(nil)

const insertActivitySQL = `
		INSERT INTO activity_log (id, occurred_at, type, user_id, book_id, message, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

// Append inserts a new activity. If ID or OccurredAt are empty, they’re set.
func (r *ActivityRepository) Append(ctx context.Context, a models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	} else {
		a.OccurredAt = a.OccurredAt.UTC()
	}

	// marshal metadata if present
	var metaPtr *string
	if a.Metadata != nil {
		if b, err := json.Marshal(a.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(insertActivitySQL),
		a.ID,
		a.OccurredAt,
		strings.ToUpper(strings.TrimSpace(a.Type)),
		intArg(a.UserID),
		intArg(a.BookID),
		a.Description,
		stringArg(metaPtr),
	)
	if err != nil {
		return fmt.Errorf("insert activity %s: %w", a.Type, err)
	}
	return nil
}

// List returns activities filtered by [from, to] (inclusive) and/or type, ordered ASC.
func (r *ActivityRepository) List(ctx context.Context, from, to time.Time, typ string) ([]models.Activity, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC())
	}
	if typ = strings.ToUpper(strings.TrimSpace(typ)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	q := `SELECT id, occurred_at, type, user_id, book_id, message, meta FROM activity_log`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("select activity: %w", err)
	}
	defer rows.Close()

	out := make([]models.Activity, 0, 64)
	for rows.Next() {
		var (
			a       models.Activity
			userID  sql.NullInt64
			bookID  sql.NullInt64
			metaStr sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.OccurredAt, &a.Type, &userID, &bookID, &a.Description, &metaStr); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.OccurredAt = a.OccurredAt.UTC()
		a.UserID = nullIntPtr(userID)
		a.BookID = nullIntPtr(bookID)

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				a.Metadata = v
			} else {
				a.Metadata = metaStr.String // keep raw if malformed
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
