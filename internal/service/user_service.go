package service

import (
	"context"
	"fmt"

	"library_api/internal/models"
	"library_api/internal/repository"
)

type UserService struct {
	users    repository.UserRepo
	books    repository.BookRepo
	activity *recorder
}

func NewUserService(users repository.UserRepo, books repository.BookRepo, activity *recorder) *UserService {
	return &UserService{users: users, books: books, activity: activity}
}

// Profile returns u together with the books it owns.
func (s *UserService) Profile(ctx context.Context, u *models.User) (*models.User, error) {
	books, err := s.books.ListByOwner(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	out := *u
	out.Books = books
	return &out, nil
}

// ListUsers returns every user with its books, using one query per table.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	books, err := s.books.List(ctx, repository.BookQuery{})
	if err != nil {
		return nil, err
	}

	byOwner := make(map[int][]models.Book, len(users))
	for _, b := range books {
		if b.OwnerID != nil {
			byOwner[*b.OwnerID] = append(byOwner[*b.OwnerID], b)
		}
	}
	for i := range users {
		users[i].Books = byOwner[users[i].ID]
		if users[i].Books == nil {
			users[i].Books = []models.Book{}
		}
	}
	return users, nil
}

// SetRole changes a user's role. Only admins may call it; it is the sole path to elevation.
func (s *UserService) SetRole(ctx context.Context, actor *models.User, userID int, role string) (*models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, errInvalidRole
	}

	ok, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errUserNotFound
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errUserNotFound
	}

	s.activity.record(ctx, models.ActivityRoleChanged, intPtr(actor.ID), nil,
		fmt.Sprintf("Role of %s set to %s", u.Username, role), map[string]any{"target_user_id": userID, "role": role})
	return s.Profile(ctx, u)
}
