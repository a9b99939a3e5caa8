package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"library_api/internal/models"
	"library_api/internal/repository"
	"library_api/internal/storage"
)

const (
	msgNotBookOwner  = "Not enough permissions"
	msgCoverNotOwner = "Not enough permissions to upload a cover"
)

var csvHeader = []string{"id", "title", "author", "description", "cover_url", "owner_id"}

type BookService struct {
	books         repository.BookRepo
	covers        storage.CoverStore
	maxCoverBytes int64
	activity      *recorder
}

func NewBookService(books repository.BookRepo, covers storage.CoverStore, maxCoverBytes int64, activity *recorder) *BookService {
	return &BookService{
		books:         books,
		covers:        covers,
		maxCoverBytes: maxCoverBytes,
		activity:      activity,
	}
}

func (s *BookService) ListBooks(ctx context.Context, f BookFilter) ([]models.Book, error) {
	if f.Skip < 0 || f.Limit <= 0 {
		return nil, errInvalidPagination
	}
	return s.books.List(ctx, repository.BookQuery{
		Author:  normalizeTerm(f.Author),
		Title:   normalizeTerm(f.Title),
		Keyword: normalizeTerm(f.Keyword),
		Offset:  f.Skip,
		Limit:   f.Limit,
	})
}

func (s *BookService) GetBook(ctx context.Context, id int) (*models.Book, error) {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errBookNotFound
	}
	return b, nil
}

// CreateBook stores a new book owned by owner.
func (s *BookService) CreateBook(ctx context.Context, owner *models.User, in NewBook) (*models.Book, error) {
	b := &models.Book{
		Title:       strings.TrimSpace(in.Title),
		Author:      strings.TrimSpace(in.Author),
		Description: in.Description,
		CoverURL:    in.CoverURL,
		OwnerID:     intPtr(owner.ID),
	}
	if b.Title == "" || b.Author == "" {
		return nil, newError(ErrInvalid, "title and author are required")
	}

	id, err := s.books.Create(ctx, b)
	if err != nil {
		return nil, err
	}
	b.ID = id

	s.activity.record(ctx, models.ActivityBookCreated, intPtr(owner.ID), intPtr(id), "Book "+b.Title+" created", nil)
	return b, nil
}

// CanEditBook fails with ErrNotFound or ErrForbidden when UpdateBook would, without a patch.
func (s *BookService) CanEditBook(ctx context.Context, actor *models.User, id int) error {
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}
	return requireBookOwner(b, actor, msgNotBookOwner)
}

// UpdateBook applies a sparse patch. Only the owner may edit a book.
func (s *BookService) UpdateBook(ctx context.Context, actor *models.User, id int, p BookPatch) (*models.Book, error) {
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireBookOwner(b, actor, msgNotBookOwner); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	p.Apply(b)
	if err := s.books.Update(ctx, b); err != nil {
		return nil, err
	}

	s.activity.record(ctx, models.ActivityBookUpdated, intPtr(actor.ID), intPtr(id), "Book "+b.Title+" updated", nil)
	return b, nil
}

// DeleteBook removes a book owned by actor. A book that is out on loan cannot be deleted.
func (s *BookService) DeleteBook(ctx context.Context, actor *models.User, id int) error {
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if err := requireBookOwner(b, actor, msgNotBookOwner); err != nil {
		return err
	}

	deleted, err := s.books.Delete(ctx, id)
	if errors.Is(err, repository.ErrActiveBorrow) {
		return errBookBorrowed
	}
	if err != nil {
		return err
	}
	if !deleted {
		return errBookNotFound
	}
	if b.CoverURL != nil && s.covers != nil {
		// best-effort: the row is gone either way
		_ = s.covers.Remove(*b.CoverURL)
	}

	s.activity.record(ctx, models.ActivityBookDeleted, intPtr(actor.ID), intPtr(id), "Book "+b.Title+" deleted", nil)
	return nil
}

// UploadCover stores the cover file and records its path on the book. The replaced cover file is
// removed once the new path is saved; the new file is removed if the path cannot be saved.
func (s *BookService) UploadCover(ctx context.Context, actor *models.User, id int, up CoverUpload) (*models.Book, error) {
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(b.OwnerID, actor, msgCoverNotOwner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(up.Filename) == "" {
		return nil, errMissingCoverName
	}
	if s.maxCoverBytes > 0 && up.Size > s.maxCoverBytes {
		return nil, errCoverTooLarge
	}

	path, err := s.covers.Save(id, up.Filename, up.Content)
	if err != nil {
		return nil, fmt.Errorf("save cover for book %d: %w", id, err)
	}
	old := b.CoverURL
	if err := s.books.SetCover(ctx, id, path); err != nil {
		if old == nil || *old != path {
			_ = s.covers.Remove(path)
		}
		return nil, err
	}
	if old != nil && *old != path {
		_ = s.covers.Remove(*old)
	}
	b.CoverURL = &path

	s.activity.record(ctx, models.ActivityCoverUploaded, intPtr(actor.ID), intPtr(id), "Cover uploaded for "+b.Title,
		map[string]any{"path": path, "size": up.Size})
	return b, nil
}

// ExportCSV writes every book, ordered by id, as CSV with a header row.
func (s *BookService) ExportCSV(ctx context.Context, w io.Writer) error {
	books, err := s.books.List(ctx, repository.BookQuery{})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range books {
		record := []string{
			strconv.Itoa(b.ID),
			b.Title,
			b.Author,
			derefString(b.Description),
			derefString(b.CoverURL),
			"",
		}
		if b.OwnerID != nil {
			record[5] = strconv.Itoa(*b.OwnerID)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row for book %d: %w", b.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
