package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"library_api/internal/models"
)

type ReviewRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewReviewRepository(db *sql.DB, d Dialect) *ReviewRepository {
	return &ReviewRepository{db: db, dialect: d}
}

var _ ReviewRepo = (*ReviewRepository)(nil)

const (
	reviewColumns          = `id, book_id, user_id, comment, rating, created_at`
	insertReviewSQL        = `INSERT INTO reviews (book_id, user_id, comment, rating, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`
	selectReviewByIDSQL    = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = ?`
	selectReviewsByBookSQL = `SELECT ` + reviewColumns + ` FROM reviews WHERE book_id = ? ORDER BY id`
	updateReviewSQL        = `UPDATE reviews SET comment = ?, rating = ? WHERE id = ?`
	deleteReviewSQL        = `DELETE FROM reviews WHERE id = ?`
)

func (r *ReviewRepository) Create(ctx context.Context, rv *models.Review) (int, error) {
	var id int
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(insertReviewSQL),
		rv.BookID,
		rv.UserID,
		stringArg(rv.Comment),
		rv.Rating,
		rv.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert review for book %d: %w", rv.BookID, err)
	}
	return id, nil
}

// GetByID fetches a review by id. Returns (nil, nil) if not found.
func (r *ReviewRepository) GetByID(ctx context.Context, id int) (*models.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, r.dialect.Rebind(selectReviewByIDSQL), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select review %d: %w", id, err)
	}
	return &rv, nil
}

func (r *ReviewRepository) ListByBook(ctx context.Context, bookID int) ([]models.Review, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(selectReviewsByBookSQL), bookID)
	if err != nil {
		return nil, fmt.Errorf("select reviews for book %d: %w", bookID, err)
	}
	defer rows.Close()

	out := make([]models.Review, 0, 16)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ReviewRepository) Update(ctx context.Context, rv *models.Review) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(updateReviewSQL), stringArg(rv.Comment), rv.Rating, rv.ID); err != nil {
		return fmt.Errorf("update review %d: %w", rv.ID, err)
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id int) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(deleteReviewSQL), id); err != nil {
		return fmt.Errorf("delete review %d: %w", id, err)
	}
	return nil
}

func scanReview(row rowScanner) (models.Review, error) {
	var (
		rv      models.Review
		comment sql.NullString
	)
	if err := row.Scan(&rv.ID, &rv.BookID, &rv.UserID, &comment, &rv.Rating, &rv.CreatedAt); err != nil {
		return models.Review{}, err
	}
	rv.Comment = nullStringPtr(comment)
	rv.CreatedAt = rv.CreatedAt.UTC()
	return rv, nil
}
