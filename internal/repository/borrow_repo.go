package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"library_api/internal/models"
)

type BorrowRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewBorrowRepository(db *sql.DB, d Dialect) *BorrowRepository {
	return &BorrowRepository{db: db, dialect: d}
}

var _ BorrowRepo = (*BorrowRepository)(nil)

const (
	borrowColumns          = `id, ref, book_id, user_id, borrow_date, return_date`
	selectActiveBorrowSQL  = `SELECT 1 FROM borrows WHERE book_id = ? AND return_date IS NULL LIMIT 1`
	insertBorrowSQL        = `INSERT INTO borrows (ref, book_id, user_id, borrow_date) VALUES (?, ?, ?, ?) RETURNING id`
	selectBorrowByIDSQL    = `SELECT ` + borrowColumns + ` FROM borrows WHERE id = ?`
	selectBorrowsByUserSQL = `SELECT ` + borrowColumns + ` FROM borrows WHERE user_id = ? ORDER BY id`
	selectBorrowsSQL       = `SELECT ` + borrowColumns + ` FROM borrows ORDER BY id`
	markReturnedSQL        = `UPDATE borrows SET return_date = ? WHERE id = ? AND return_date IS NULL`
)

// CreateActive inserts b as the book's active borrow. The availability check and the insert share
// one transaction, and the partial unique index on (book_id) WHERE return_date IS NULL rejects a
// concurrent winner; both cases return ErrActiveBorrow.
func (r *BorrowRepository) CreateActive(ctx context.Context, b *models.Borrow) (int, error) {
	var id int
	err := RunInTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		var one int
		err := tx.QueryRowContext(ctx, r.dialect.Rebind(selectActiveBorrowSQL), b.BookID).Scan(&one)
		switch {
		case err == nil:
			return ErrActiveBorrow
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check active borrow for book %d: %w", b.BookID, err)
		}

		err = tx.QueryRowContext(ctx, r.dialect.Rebind(insertBorrowSQL),
			b.Ref,
			b.BookID,
			b.UserID,
			b.BorrowDate.UTC(),
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrActiveBorrow
			}
			return fmt.Errorf("insert borrow for book %d: %w", b.BookID, err)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			// commit-time conflict
			return 0, ErrActiveBorrow
		}
		return 0, err
	}
	return id, nil
}

// GetByID fetches a borrow by id. Returns (nil, nil) if not found.
func (r *BorrowRepository) GetByID(ctx context.Context, id int) (*models.Borrow, error) {
	b, err := scanBorrow(r.db.QueryRowContext(ctx, r.dialect.Rebind(selectBorrowByIDSQL), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select borrow %d: %w", id, err)
	}
	return &b, nil
}

// MarkReturned sets the return date only if the borrow is still active.
// It reports false when no active borrow with that id exists.
func (r *BorrowRepository) MarkReturned(ctx context.Context, id int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(markReturnedSQL), at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("mark borrow %d returned: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for borrow %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *BorrowRepository) ListByUser(ctx context.Context, userID int) ([]models.Borrow, error) {
	return r.query(ctx, selectBorrowsByUserSQL, userID)
}

func (r *BorrowRepository) ListAll(ctx context.Context) ([]models.Borrow, error) {
	return r.query(ctx, selectBorrowsSQL)
}

func (r *BorrowRepository) query(ctx context.Context, query string, args ...any) ([]models.Borrow, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select borrows: %w", err)
	}
	defer rows.Close()

	out := make([]models.Borrow, 0, 16)
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrow: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanBorrow(row rowScanner) (models.Borrow, error) {
	var (
		b        models.Borrow
		returned sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.Ref, &b.BookID, &b.UserID, &b.BorrowDate, &returned); err != nil {
		return models.Borrow{}, err
	}
	b.BorrowDate = b.BorrowDate.UTC()
	if returned.Valid {
		t := returned.Time.UTC()
		b.ReturnDate = &t
	}
	return b, nil
}
