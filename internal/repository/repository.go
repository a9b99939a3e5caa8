package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"library_api/internal/models"
)

// Constraint errors surfaced by the repositories.
var (
	ErrDuplicate    = errors.New("duplicate value")
	ErrActiveBorrow = errors.New("book has an active borrow")
)

type UserRepo interface {
	Create(ctx context.Context, u *models.User) (int, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id int, role string) (bool, error)
}

// BookQuery selects a page of books. Empty strings disable a filter; Limit <= 0 means no limit.
type BookQuery struct {
	Author  string
	Title   string
	Keyword string
	Offset  int
	Limit   int
}

type BookRepo interface {
	Create(ctx context.Context, b *models.Book) (int, error)
	GetByID(ctx context.Context, id int) (*models.Book, error)
	List(ctx context.Context, q BookQuery) ([]models.Book, error)
	ListByOwner(ctx context.Context, ownerID int) ([]models.Book, error)
	Update(ctx context.Context, b *models.Book) error
	SetCover(ctx context.Context, id int, path string) error
	Delete(ctx context.Context, id int) (bool, error)
}

type BorrowRepo interface {
	CreateActive(ctx context.Context, b *models.Borrow) (int, error)
	GetByID(ctx context.Context, id int) (*models.Borrow, error)
	MarkReturned(ctx context.Context, id int, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID int) ([]models.Borrow, error)
	ListAll(ctx context.Context) ([]models.Borrow, error)
}

type ReviewRepo interface {
	Create(ctx context.Context, r *models.Review) (int, error)
	GetByID(ctx context.Context, id int) (*models.Review, error)
	ListByBook(ctx context.Context, bookID int) ([]models.Review, error)
	Update(ctx context.Context, r *models.Review) error
	Delete(ctx context.Context, id int) error
}

type ActivityRepo interface {
	Append(ctx context.Context, a models.Activity) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Activity, error)
}

type Repository struct {
	Users    UserRepo
	Books    BookRepo
	Borrows  BorrowRepo
	Reviews  ReviewRepo
	Activity ActivityRepo
}

func NewRepository(db *sql.DB, d Dialect) *Repository {
	return &Repository{
		Users:    NewUserRepository(db, d),
		Books:    NewBookRepository(db, d),
		Borrows:  NewBorrowRepository(db, d),
		Reviews:  NewReviewRepository(db, d),
		Activity: NewActivityRepository(db, d),
	}
}
