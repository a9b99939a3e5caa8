package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"library_api/internal/models"
	"library_api/internal/repository"
)

// memUsers is an in-memory repository.UserRepo.
type memUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]models.User
	err    error
}

func newMemUsers() *memUsers { return &memUsers{byID: map[int]models.User{}} }

func (m *memUsers) Create(_ context.Context, u *models.User) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	for _, x := range m.byID {
		if x.Username == u.Username || x.Email == u.Email {
			return 0, repository.ErrDuplicate
		}
	}
	m.nextID++
	c := *u
	c.ID = m.nextID
	c.Books = nil
	m.byID[c.ID] = c
	return c.ID, nil
}

func (m *memUsers) GetByID(_ context.Context, id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return &u, nil
	}
	return nil, m.err
}

func (m *memUsers) find(match func(models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u models.User) bool { return u.Username == username })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u models.User) bool { return u.Email == email })
}

func (m *memUsers) List(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) UpdateRole(_ context.Context, id int, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	u.Role = role
	m.byID[id] = u
	return true, nil
}

// memBooks is an in-memory repository.BookRepo.
type memBooks struct {
	mu        sync.Mutex
	nextID    int
	byID      map[int]models.Book
	lastQuery repository.BookQuery
	borrows   *memBorrows
	coverErr  error
}

func newMemBooks() *memBooks { return &memBooks{byID: map[int]models.Book{}} }

func (m *memBooks) Create(_ context.Context, b *models.Book) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := *b
	c.ID = m.nextID
	m.byID[c.ID] = c
	return c.ID, nil
}

func (m *memBooks) GetByID(_ context.Context, id int) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.byID[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (m *memBooks) sorted() []models.Book {
	out := make([]models.Book, 0, len(m.byID))
	for _, b := range m.byID {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memBooks) List(_ context.Context, q repository.BookQuery) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	var out []models.Book
	for _, b := range m.sorted() {
		if q.Author != "" && !strings.Contains(strings.ToLower(b.Author), q.Author) {
			continue
		}
		if q.Title != "" && !strings.Contains(strings.ToLower(b.Title), q.Title) {
			continue
		}
		if q.Keyword != "" && (b.Description == nil || !strings.Contains(strings.ToLower(*b.Description), q.Keyword)) {
			continue
		}
		out = append(out, b)
	}
	if q.Limit > 0 {
		if q.Offset >= len(out) {
			return []models.Book{}, nil
		}
		end := q.Offset + q.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[q.Offset:end]
	}
	if out == nil {
		out = []models.Book{}
	}
	return out, nil
}

func (m *memBooks) ListByOwner(_ context.Context, ownerID int) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Book{}
	for _, b := range m.sorted() {
		if b.OwnerID != nil && *b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBooks) Update(_ context.Context, b *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[b.ID] = *b
	return nil
}

func (m *memBooks) SetCover(_ context.Context, id int, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.coverErr != nil {
		return m.coverErr
	}
	b := m.byID[id]
	b.CoverURL = &path
	m.byID[id] = b
	return nil
}

func (m *memBooks) Delete(_ context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return false, nil
	}
	if m.borrows != nil && m.borrows.activeFor(id) {
		return false, repository.ErrActiveBorrow
	}
	delete(m.byID, id)
	return true, nil
}

// memBorrows is an in-memory repository.BorrowRepo holding the one-active-borrow rule under a mutex.
type memBorrows struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]models.Borrow
}

func newMemBorrows() *memBorrows { return &memBorrows{byID: map[int]models.Borrow{}} }

func (m *memBorrows) CreateActive(_ context.Context, b *models.Borrow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.BookID == b.BookID && x.ReturnDate == nil {
			return 0, repository.ErrActiveBorrow
		}
	}
	m.nextID++
	c := *b
	c.ID = m.nextID
	m.byID[c.ID] = c
	return c.ID, nil
}

func (m *memBorrows) GetByID(_ context.Context, id int) (*models.Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.byID[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (m *memBorrows) activeFor(bookID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.BookID == bookID && x.ReturnDate == nil {
			return true
		}
	}
	return false
}

func (m *memBorrows) MarkReturned(_ context.Context, id int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok || b.ReturnDate != nil {
		return false, nil
	}
	b.ReturnDate = &at
	m.byID[id] = b
	return true, nil
}

func (m *memBorrows) list(match func(models.Borrow) bool) []models.Borrow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Borrow{}
	for _, b := range m.byID {
		if match(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memBorrows) ListByUser(_ context.Context, userID int) ([]models.Borrow, error) {
	return m.list(func(b models.Borrow) bool { return b.UserID == userID }), nil
}

func (m *memBorrows) ListAll(_ context.Context) ([]models.Borrow, error) {
	return m.list(func(models.Borrow) bool { return true }), nil
}

// memReviews is an in-memory repository.ReviewRepo.
type memReviews struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]models.Review
}

func newMemReviews() *memReviews { return &memReviews{byID: map[int]models.Review{}} }

func (m *memReviews) Create(_ context.Context, r *models.Review) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := *r
	c.ID = m.nextID
	m.byID[c.ID] = c
	return c.ID, nil
}

func (m *memReviews) GetByID(_ context.Context, id int) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memReviews) ListByBook(_ context.Context, bookID int) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Review{}
	for _, r := range m.byID {
		if r.BookID == bookID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memReviews) Update(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[r.ID] = *r
	return nil
}

func (m *memReviews) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

// fakeActivityRepo captures appended entries and the last List arguments.
type fakeActivityRepo struct {
	mu        sync.Mutex
	appended  []models.Activity
	appendErr error

	gotFrom time.Time
	gotTo   time.Time
	gotType string
	events  []models.Activity
	err     error
	calls   int
}

func (f *fakeActivityRepo) Append(_ context.Context, a models.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, a)
	return f.appendErr
}

func (f *fakeActivityRepo) List(_ context.Context, from, to time.Time, typ string) ([]models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFrom, f.gotTo, f.gotType = from, to, typ
	return f.events, f.err
}

func (f *fakeActivityRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, a := range f.appended {
		out = append(out, a.Type)
	}
	return out
}

// fakeCovers is an in-memory storage.CoverStore.
type fakeCovers struct {
	saved   map[string]string
	removed []string
	saveErr error
}

func newFakeCovers() *fakeCovers { return &fakeCovers{saved: map[string]string{}} }

func (f *fakeCovers) Save(bookID int, filename string, r io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	path := "covers/" + coverFile(bookID, filename)
	f.saved[path] = string(data)
	return path, nil
}

func (f *fakeCovers) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func coverFile(bookID int, filename string) string {
	return "book_" + strconv.Itoa(bookID) + "_" + filename
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var errDBDown = errors.New("db down")

// fixture bundles the in-memory repositories behind the concrete services.
type fixture struct {
	users    *memUsers
	books    *memBooks
	borrows  *memBorrows
	reviews  *memReviews
	activity *fakeActivityRepo
	covers   *fakeCovers
	rec      *recorder
}

func newFixture() *fixture {
	f := &fixture{
		users:    newMemUsers(),
		books:    newMemBooks(),
		borrows:  newMemBorrows(),
		reviews:  newMemReviews(),
		activity: &fakeActivityRepo{},
		covers:   newFakeCovers(),
	}
	f.books.borrows = f.borrows
	f.rec = newRecorder(f.activity, fixedClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}, nil)
	return f
}

func (f *fixture) addUser(username, role string) *models.User {
	id, _ := f.users.Create(context.Background(), &models.User{Username: username, Email: username + "@example.com", Role: role})
	u, _ := f.users.GetByID(context.Background(), id)
	return u
}

func (f *fixture) addBook(title, author string, owner *models.User) *models.Book {
	b := &models.Book{Title: title, Author: author}
	if owner != nil {
		b.OwnerID = intPtr(owner.ID)
	}
	id, _ := f.books.Create(context.Background(), b)
	b.ID = id
	return b
}

func strPtr(s string) *string { return &s }
