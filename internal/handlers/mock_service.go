package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"

	"library_api/internal/models"
	"library_api/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

// mockAuth resolves bearer tokens from a fixed table.
type mockAuth struct {
	users     map[string]*models.User
	authErr   error
	token     string
	tokenErr  error
	signUp    *models.User
	signUpErr error

	lastSignUp      service.SignUpInput
	lastGenUsername string
	lastGenPassword string
}

func (m *mockAuth) SignUp(_ context.Context, in service.SignUpInput) (*models.User, error) {
	m.lastSignUp = in
	return m.signUp, m.signUpErr
}

func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.token, m.tokenErr
}

func (m *mockAuth) ParseToken(token string) (string, error) {
	if u, ok := m.users[token]; ok {
		return u.Username, nil
	}
	return "", service.ErrInvalidToken
}

func (m *mockAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	if u, ok := m.users[token]; ok {
		return u, nil
	}
	return nil, &service.Error{Kind: service.ErrUnauthenticated, Msg: "Could not validate credentials"}
}

// mockBooks returns err from every call and records the last filter.
type mockBooks struct {
	books      []models.Book
	err        error
	lastFilter service.BookFilter
}

func (m *mockBooks) ListBooks(_ context.Context, f service.BookFilter) ([]models.Book, error) {
	m.lastFilter = f
	return m.books, m.err
}

func (m *mockBooks) GetBook(context.Context, int) (*models.Book, error) { return nil, m.err }

func (m *mockBooks) CreateBook(context.Context, *models.User, service.NewBook) (*models.Book, error) {
	return nil, m.err
}

func (m *mockBooks) CanEditBook(context.Context, *models.User, int) error { return m.err }

func (m *mockBooks) UpdateBook(context.Context, *models.User, int, service.BookPatch) (*models.Book, error) {
	return nil, m.err
}

func (m *mockBooks) DeleteBook(context.Context, *models.User, int) error { return m.err }

func (m *mockBooks) UploadCover(context.Context, *models.User, int, service.CoverUpload) (*models.Book, error) {
	return nil, m.err
}

func (m *mockBooks) ExportCSV(context.Context, io.Writer) error { return m.err }

type mockActivityLog struct {
	mu         sync.Mutex
	resp       []models.Activity
	err        error
	calls      int
	lastFilter service.LogFilter
}

func (m *mockActivityLog) List(_ context.Context, f service.LogFilter) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastFilter = f
	return append([]models.Activity(nil), m.resp...), m.err
}

func (m *mockActivityLog) add(a models.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resp = append(m.resp, a)
}

type failingPinger struct{ err error }

func (p failingPinger) PingContext(context.Context) error { return p.err }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, Config{})
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
