package service

import (
	"context"
	"io"
	"time"

	"library_api/internal/logger"
	"library_api/internal/models"
	"library_api/internal/repository"
	"library_api/internal/storage"
)

type Authorization interface {
	SignUp(ctx context.Context, in SignUpInput) (*models.User, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (string, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// Users exposes profile reads and admin-only account management.
type Users interface {
	Profile(ctx context.Context, u *models.User) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetRole(ctx context.Context, actor *models.User, userID int, role string) (*models.User, error)
}

// Books exposes the catalog: search, ownership-guarded edits, covers and CSV export.
type Books interface {
	ListBooks(ctx context.Context, f BookFilter) ([]models.Book, error)
	GetBook(ctx context.Context, id int) (*models.Book, error)
	CreateBook(ctx context.Context, owner *models.User, in NewBook) (*models.Book, error)
	CanEditBook(ctx context.Context, actor *models.User, id int) error
	UpdateBook(ctx context.Context, actor *models.User, id int, p BookPatch) (*models.Book, error)
	DeleteBook(ctx context.Context, actor *models.User, id int) error
	UploadCover(ctx context.Context, actor *models.User, id int, up CoverUpload) (*models.Book, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

// Borrows drives the per-book Available -> Borrowed -> Available cycle.
type Borrows interface {
	Borrow(ctx context.Context, user *models.User, bookID int) (*models.Borrow, error)
	Return(ctx context.Context, actor *models.User, borrowID int) (*models.Borrow, error)
	MyBorrows(ctx context.Context, user *models.User) ([]models.Borrow, error)
	AllBorrows(ctx context.Context) ([]models.Borrow, error)
}

type Reviews interface {
	CreateReview(ctx context.Context, author *models.User, in NewReview) (*models.Review, error)
	BookReviews(ctx context.Context, bookID int) ([]models.Review, error)
	CanEditReview(ctx context.Context, actor *models.User, id int) error
	UpdateReview(ctx context.Context, actor *models.User, id int, p ReviewPatch) (*models.Review, error)
	DeleteReview(ctx context.Context, actor *models.User, id int) error
}

// ActivityLog exposes the append-only activity history with filtering.
type ActivityLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Activity, error)
}

// Clock abstracts time for the services.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config carries the service-level settings.
type Config struct {
	Auth          AuthConfig
	MaxCoverBytes int64
	// Log receives failed activity appends; nil drops them silently.
	Log *logger.Logger
}

type Service struct {
	Authorization
	Users
	Books
	Borrows
	Reviews
	ActivityLog
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, covers storage.CoverStore, cfg Config) *Service {
	clock := realClock{}
	rec := newRecorder(repos.Activity, clock, cfg.Log)
	return &Service{
		Authorization: NewAuthService(repos.Users, rec, cfg.Auth),
		Users:         NewUserService(repos.Users, repos.Books, rec),
		Books:         NewBookService(repos.Books, covers, cfg.MaxCoverBytes, rec),
		Borrows:       NewBorrowService(repos.Books, repos.Borrows, rec),
		Reviews:       NewReviewService(repos.Books, repos.Reviews, rec),
		ActivityLog:   NewActivityLogService(repos.Activity),
	}
}
