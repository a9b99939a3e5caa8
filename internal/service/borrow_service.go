package service

import (
	"context"
	"errors"
	"fmt"

	"library_api/internal/models"
	"library_api/internal/repository"
)

const msgNotBorrower = "Not enough permissions"

type BorrowService struct {
	books    repository.BookRepo
	borrows  repository.BorrowRepo
	activity *recorder
	clock    Clock
}

func NewBorrowService(books repository.BookRepo, borrows repository.BorrowRepo, activity *recorder) *BorrowService {
	return &BorrowService{books: books, borrows: borrows, activity: activity, clock: realClock{}}
}

// Borrow opens a new active borrow of bookID for user. At most one borrow per book may be active;
// the repository enforces that atomically.
func (s *BorrowService) Borrow(ctx context.Context, user *models.User, bookID int) (*models.Borrow, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, errBookNotFound
	}

	now := s.clock.Now().UTC()
	br := &models.Borrow{
		Ref:        newBorrowRef(now),
		BookID:     bookID,
		UserID:     user.ID,
		BorrowDate: now,
	}
	id, err := s.borrows.CreateActive(ctx, br)
	if err != nil {
		if errors.Is(err, repository.ErrActiveBorrow) {
			return nil, errAlreadyBorrowed
		}
		return nil, err
	}
	br.ID = id

	s.activity.record(ctx, models.ActivityBorrowed, intPtr(user.ID), intPtr(bookID),
		fmt.Sprintf("%s borrowed %s", user.Username, book.Title), map[string]any{"borrow_id": id, "ref": br.Ref})
	return br, nil
}

// Return closes an active borrow. Only the borrower or an admin may return it, and only once.
func (s *BorrowService) Return(ctx context.Context, actor *models.User, borrowID int) (*models.Borrow, error) {
	br, err := s.borrows.GetByID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if br == nil {
		return nil, errBorrowNotFound
	}
	if err := RequireOwnerOrAdmin(&br.UserID, actor, msgNotBorrower); err != nil {
		return nil, err
	}
	if !br.Active() {
		return nil, errAlreadyReturned
	}

	now := s.clock.Now().UTC()
	ok, err := s.borrows.MarkReturned(ctx, borrowID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// a concurrent return won the race
		return nil, errAlreadyReturned
	}
	br.ReturnDate = &now

	s.activity.record(ctx, models.ActivityReturned, intPtr(actor.ID), intPtr(br.BookID),
		fmt.Sprintf("Borrow %d returned", borrowID), map[string]any{"borrow_id": borrowID, "ref": br.Ref})
	return br, nil
}

func (s *BorrowService) MyBorrows(ctx context.Context, user *models.User) ([]models.Borrow, error) {
	return s.borrows.ListByUser(ctx, user.ID)
}

func (s *BorrowService) AllBorrows(ctx context.Context) ([]models.Borrow, error) {
	return s.borrows.ListAll(ctx)
}
