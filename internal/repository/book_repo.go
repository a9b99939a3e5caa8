package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"library_api/internal/models"
)

type BookRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewBookRepository(db *sql.DB, d Dialect) *BookRepository {
	return &BookRepository{db: db, dialect: d}
}

var _ BookRepo = (*BookRepository)(nil)

const (
	bookColumns           = `id, title, author, description, cover_url, owner_id`
	insertBookSQL         = `INSERT INTO books (title, author, description, cover_url, owner_id) VALUES (?, ?, ?, ?, ?) RETURNING id`
	selectBookByIDSQL     = `SELECT ` + bookColumns + ` FROM books WHERE id = ?`
	selectBooksByOwnerSQL = `SELECT ` + bookColumns + ` FROM books WHERE owner_id = ? ORDER BY id`
	updateBookSQL         = `UPDATE books SET title = ?, author = ?, description = ?, cover_url = ? WHERE id = ?`
	updateBookCoverSQL    = `UPDATE books SET cover_url = ? WHERE id = ?`
	lockBookSQL           = `SELECT id FROM books WHERE id = ? FOR UPDATE`
	deleteIdleBookSQL     = `DELETE FROM books WHERE id = ? AND NOT EXISTS (` +
		`SELECT 1 FROM borrows WHERE book_id = ? AND return_date IS NULL)`
)

func (r *BookRepository) Create(ctx context.Context, b *models.Book) (int, error) {
	var id int
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(insertBookSQL),
		b.Title,
		b.Author,
		stringArg(b.Description),
		stringArg(b.CoverURL),
		intArg(b.OwnerID),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert book %q: %w", b.Title, err)
	}
	return id, nil
}

// GetByID fetches a book by id. Returns (nil, nil) if not found.
func (r *BookRepository) GetByID(ctx context.Context, id int) (*models.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx, r.dialect.Rebind(selectBookByIDSQL), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select book %d: %w", id, err)
	}
	return &b, nil
}

// List returns books matching every non-empty filter, ordered by id.
// Filter values are matched as case-insensitive substrings; callers pass them lower-cased.
func (r *BookRepository) List(ctx context.Context, q BookQuery) ([]models.Book, error) {
	var (
		conds []string
		args  []any
	)
	if q.Author != "" {
		conds = append(conds, r.dialect.Lower("author")+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Author)+"%")
	}
	if q.Title != "" {
		conds = append(conds, r.dialect.Lower("title")+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Title)+"%")
	}
	if q.Keyword != "" {
		conds = append(conds, r.dialect.Lower("description")+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Keyword)+"%")
	}

	query := `SELECT ` + bookColumns + ` FROM books`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	return r.query(ctx, query, args...)
}

func (r *BookRepository) ListByOwner(ctx context.Context, ownerID int) ([]models.Book, error) {
	return r.query(ctx, selectBooksByOwnerSQL, ownerID)
}

func (r *BookRepository) query(ctx context.Context, query string, args ...any) ([]models.Book, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select books: %w", err)
	}
	defer rows.Close()

	out := make([]models.Book, 0, 16)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes every mutable column of b.
func (r *BookRepository) Update(ctx context.Context, b *models.Book) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(updateBookSQL),
		b.Title,
		b.Author,
		stringArg(b.Description),
		stringArg(b.CoverURL),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update book %d: %w", b.ID, err)
	}
	return nil
}

func (r *BookRepository) SetCover(ctx context.Context, id int, path string) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(updateBookCoverSQL), path, id); err != nil {
		return fmt.Errorf("update cover of book %d: %w", id, err)
	}
	return nil
}

// Delete removes the book unless it is out on loan; borrows and reviews go with it
// (ON DELETE CASCADE). It reports false when no such book exists and ErrActiveBorrow
// when an unreturned borrow holds it. On Postgres the book row is locked first, so a
// concurrent borrow either commits before the check or fails its foreign key after.
func (r *BookRepository) Delete(ctx context.Context, id int) (bool, error) {
	var deleted bool
	err := RunInTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if r.dialect == Postgres {
			var locked int
			err := tx.QueryRowContext(ctx, r.dialect.Rebind(lockBookSQL), id).Scan(&locked)
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("lock book %d: %w", id, err)
			}
		}

		res, err := tx.ExecContext(ctx, r.dialect.Rebind(deleteIdleBookSQL), id, id)
		if err != nil {
			return fmt.Errorf("delete book %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete book %d: %w", id, err)
		}
		if n > 0 {
			deleted = true
			return nil
		}

		var one int
		err = tx.QueryRowContext(ctx, r.dialect.Rebind(selectActiveBorrowSQL), id).Scan(&one)
		switch {
		case err == nil:
			return ErrActiveBorrow
		case errors.Is(err, sql.ErrNoRows):
			return nil
		default:
			return fmt.Errorf("check active borrow for book %d: %w", id, err)
		}
	})
	return deleted, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (models.Book, error) {
	var (
		b     models.Book
		desc  sql.NullString
		cover sql.NullString
		owner sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &desc, &cover, &owner); err != nil {
		return models.Book{}, err
	}
	b.Description = nullStringPtr(desc)
	b.CoverURL = nullStringPtr(cover)
	b.OwnerID = nullIntPtr(owner)
	return b, nil
}
