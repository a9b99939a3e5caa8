package service

import (
	"context"
	"fmt"

	"library_api/internal/models"
	"library_api/internal/repository"
)

const msgNotReviewAuthor = "Not enough permissions"

type ReviewService struct {
	books    repository.BookRepo
	reviews  repository.ReviewRepo
	activity *recorder
	clock    Clock
}

func NewReviewService(books repository.BookRepo, reviews repository.ReviewRepo, activity *recorder) *ReviewService {
	return &ReviewService{books: books, reviews: reviews, activity: activity, clock: realClock{}}
}

func (s *ReviewService) CreateReview(ctx context.Context, author *models.User, in NewReview) (*models.Review, error) {
	book, err := s.books.GetByID(ctx, in.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, errBookNotFound
	}

	r := &models.Review{
		BookID:    in.BookID,
		UserID:    author.ID,
		Comment:   in.Comment,
		Rating:    in.Rating,
		CreatedAt: s.clock.Now().UTC(),
	}
	id, err := s.reviews.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	r.ID = id

	s.activity.record(ctx, models.ActivityReviewCreated, intPtr(author.ID), intPtr(in.BookID),
		fmt.Sprintf("%s reviewed %s", author.Username, book.Title), map[string]any{"review_id": id, "rating": in.Rating})
	return r, nil
}

// BookReviews lists the reviews of a book; an unknown book simply has none.
func (s *ReviewService) BookReviews(ctx context.Context, bookID int) ([]models.Review, error) {
	return s.reviews.ListByBook(ctx, bookID)
}

func (s *ReviewService) UpdateReview(ctx context.Context, actor *models.User, id int, p ReviewPatch) (*models.Review, error) {
	r, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	p.Apply(r)
	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, err
	}

	s.activity.record(ctx, models.ActivityReviewUpdated, intPtr(actor.ID), intPtr(r.BookID),
		fmt.Sprintf("Review %d updated", id), map[string]any{"review_id": id})
	return r, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, actor *models.User, id int) error {
	r, err := s.authorized(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}

	s.activity.record(ctx, models.ActivityReviewDeleted, intPtr(actor.ID), intPtr(r.BookID),
		fmt.Sprintf("Review %d deleted", id), map[string]any{"review_id": id})
	return nil
}

func (s *ReviewService) CanEditReview(ctx context.Context, actor *models.User, id int) error {
	_, err := s.authorized(ctx, actor, id)
	return err
}

// authorized loads review id and checks that actor wrote it or is an admin.
func (s *ReviewService) authorized(ctx context.Context, actor *models.User, id int) (*models.Review, error) {
	r, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errReviewNotFound
	}
	if err := RequireOwnerOrAdmin(&r.UserID, actor, msgNotReviewAuthor); err != nil {
		return nil, err
	}
	return r, nil
}
