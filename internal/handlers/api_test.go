package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"library_api/internal/models"
	"library_api/internal/repository"
	"library_api/internal/repository/db"
	"library_api/internal/service"
	"library_api/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t        *testing.T
	router   *gin.Engine
	covers   string
	repos    *repository.Repository
	services *service.Service
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	conn, err := db.InitSQLite(filepath.Join(dir, "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	covers := filepath.Join(dir, "covers")
	repos := repository.NewRepository(conn, repository.SQLite)
	services := service.NewService(repos, storage.NewLocalCovers(covers), service.Config{
		Auth:          service.AuthConfig{SigningKey: "test-key", TokenTTL: time.Hour},
		MaxCoverBytes: 1 << 10,
	})
	h := NewHandler(services, nil, Config{DB: conn, MaxCoverBytes: 1 << 10})
	return &apiClient{t: t, router: h.InitRoutes(), covers: covers, repos: repos, services: services}
}

func (a *apiClient) do(method, target, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	if body == nil {
		return a.send(method, target, token, nil)
	}
	b, err := json.Marshal(body)
	require.NoError(a.t, err)
	return a.send(method, target, token, b)
}

// send issues a request with a raw JSON body, which may be malformed.
func (a *apiClient) send(method, target, token string, body []byte) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

// signUp registers username and logs in with a form-encoded body, returning the token.
func (a *apiClient) signUp(username string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/users/register", "", map[string]string{
		"username": username, "email": username + "@example.com", "password": "pw-" + username,
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	form := url.Values{"username": {username}, "password": {"pw-" + username}}
	req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	lw := httptest.NewRecorder()
	a.router.ServeHTTP(lw, req)
	require.Equal(a.t, http.StatusOK, lw.Code, lw.Body.String())

	tok := decode[tokenResponse](a.t, lw)
	require.Equal(a.t, "bearer", tok.TokenType)
	return tok.AccessToken
}

// signUpAdmin registers username through the API, then promotes it the way cmd/seed does.
func (a *apiClient) signUpAdmin(username string) string {
	a.t.Helper()
	token := a.signUp(username)
	u, err := a.repos.Users.GetByUsername(context.Background(), username)
	require.NoError(a.t, err)
	require.Equal(a.t, models.RoleUser, u.Role, "registration must never grant admin")

	operator := &models.User{Username: "operator", Role: models.RoleAdmin}
	_, err = a.services.SetRole(context.Background(), operator, u.ID, models.RoleAdmin)
	require.NoError(a.t, err)
	return token
}

func (a *apiClient) createBook(token, title, author string) models.Book {
	a.t.Helper()
	w := a.do(http.MethodPost, "/books/", token, map[string]any{"title": title, "author": author})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Book](a.t, w)
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodPost, "/users/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret", "role": "admin",
	})
	require.Equal(t, http.StatusOK, w.Code)
	u := decode[map[string]any](t, w)
	assert.Equal(t, "user", u["role"], "role in the body must be ignored")
	assert.Equal(t, []any{}, u["books"])
	assert.NotContains(t, u, "password_hash")

	w = api.do(http.MethodPost, "/users/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username already registered", errorOf(t, w))

	w = api.do(http.MethodPost, "/users/register", "", map[string]string{
		"username": "bob", "email": "not-an-email", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/users/login", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect username or password", errorOf(t, w))

	w = api.do(http.MethodPost, "/users/login", "", map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[tokenResponse](t, w).AccessToken

	w = api.do(http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[models.User](t, w).Username)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/users/me", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/users/", token, nil).Code)
}

func TestAPI_AdminRoleChange(t *testing.T) {
	api := newAPI(t)
	admin := api.signUpAdmin("admin")
	alice := api.signUp("alice")
	api.createBook(alice, "Dune", "Herbert")

	w := api.do(http.MethodGet, "/users/", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[[]models.User](t, w)
	require.Len(t, users, 2)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.Len(t, users[1].Books, 1)

	aliceID := users[1].ID
	w = api.do(http.MethodPut, "/users/"+strconv.Itoa(aliceID)+"/role", alice, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPut, "/users/"+strconv.Itoa(aliceID)+"/role", admin, map[string]string{"role": "boss"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPut, "/users/"+strconv.Itoa(aliceID)+"/role", admin, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleAdmin, decode[models.User](t, w).Role)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/users/", alice, nil).Code)
}

func TestAPI_BookCRUDAndSearch(t *testing.T) {
	api := newAPI(t)
	alice := api.signUp("alice")
	bob := api.signUp("bob")

	hobbit := api.createBook(alice, "The Hobbit", "J.R.R. Tolkien")
	api.createBook(alice, "Dune", "Frank Herbert")

	for _, q := range []string{"tolkien", "TOLKIEN", "Tolk"} {
		w := api.do(http.MethodGet, "/books/?author="+q, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		books := decode[[]models.Book](t, w)
		require.Len(t, books, 1, "author=%s", q)
		assert.Equal(t, hobbit.ID, books[0].ID)
	}

	w := api.do(http.MethodGet, "/books/?skip=1&limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dune", decode[[]models.Book](t, w)[0].Title)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/books/?skip=-1", "", nil).Code)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/books/999", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/books/", "", map[string]string{"title": "x", "author": "y"}).Code)

	id := strconv.Itoa(hobbit.ID)
	w = api.do(http.MethodPut, "/books/"+id, bob, map[string]string{"title": "Stolen"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPut, "/books/"+id, alice, map[string]string{"description": "There and back again"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Book](t, w)
	assert.Equal(t, "The Hobbit", updated.Title)
	require.NotNil(t, updated.Description)

	w = api.do(http.MethodGet, "/books/?keyword=BACK", "", nil)
	assert.Len(t, decode[[]models.Book](t, w), 1)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/books/"+id, bob, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/books/"+id, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/books/"+id, "", nil).Code)
}

func TestAPI_BorrowLifecycle(t *testing.T) {
	api := newAPI(t)
	admin := api.signUpAdmin("admin")
	alice := api.signUp("alice")
	bob := api.signUp("bob")
	book := api.createBook(alice, "Dune", "Herbert")

	w := api.do(http.MethodPost, "/borrows/", bob, map[string]int{"book_id": book.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	br := decode[models.Borrow](t, w)
	assert.Nil(t, br.ReturnDate)
	assert.NotEmpty(t, br.Ref)

	w = api.do(http.MethodPost, "/borrows/", alice, map[string]int{"book_id": book.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Book already borrowed", errorOf(t, w))

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/borrows/", bob, map[string]int{"book_id": 404}).Code)

	w = api.do(http.MethodDelete, "/books/"+strconv.Itoa(book.ID), alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Book is currently borrowed", errorOf(t, w))

	ret := "/borrows/" + strconv.Itoa(br.ID) + "/return"
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, ret, alice, nil).Code)

	w = api.do(http.MethodPost, ret, bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode[models.Borrow](t, w).ReturnDate)

	w = api.do(http.MethodPost, ret, admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Book already returned", errorOf(t, w))

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/borrows/999/return", bob, nil).Code)

	w = api.do(http.MethodGet, "/borrows/me", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Borrow](t, w), 1)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/borrows/", bob, nil).Code)
	w = api.do(http.MethodGet, "/borrows/", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Borrow](t, w), 1)

	w = api.do(http.MethodGet, "/activity/?type=borrowed", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])
}

func TestAPI_ConcurrentBorrowOnlyOneSucceeds(t *testing.T) {
	api := newAPI(t)
	owner := api.signUp("owner")
	book := api.createBook(owner, "Dune", "Herbert")

	const n = 8
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = api.signUp("reader" + strconv.Itoa(i))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			w := api.do(http.MethodPost, "/borrows/", tok, map[string]int{"book_id": book.ID})
			mu.Lock()
			codes[w.Code]++
			mu.Unlock()
		}(tok)
	}
	wg.Wait()

	assert.Equal(t, 1, codes[http.StatusCreated])
	assert.Equal(t, n-1, codes[http.StatusBadRequest])
}

func TestAPI_Reviews(t *testing.T) {
	api := newAPI(t)
	admin := api.signUpAdmin("admin")
	alice := api.signUp("alice")
	bob := api.signUp("bob")
	book := api.createBook(alice, "Dune", "Herbert")

	w := api.do(http.MethodPost, "/reviews/", bob, map[string]any{"book_id": 404, "rating": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/reviews/", bob, map[string]any{"book_id": book.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code, "rating is required")

	w = api.do(http.MethodPost, "/reviews/", bob, map[string]any{"book_id": book.ID, "comment": "great", "rating": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rv := decode[models.Review](t, w)

	w = api.do(http.MethodGet, "/reviews/book/"+strconv.Itoa(book.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Review](t, w), 1)

	path := "/reviews/" + strconv.Itoa(rv.ID)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPut, path, alice, map[string]int{"rating": 1}).Code)

	w = api.do(http.MethodPut, path, bob, map[string]int{"rating": 3})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Review](t, w)
	assert.Equal(t, 3, updated.Rating)
	require.NotNil(t, updated.Comment)
	assert.Equal(t, "great", *updated.Comment)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, path, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, path, admin, nil).Code)

	w = api.do(http.MethodGet, "/reviews/book/"+strconv.Itoa(book.ID), "", nil)
	assert.Equal(t, "[]", w.Body.String())
}

func (a *apiClient) uploadCover(token string, bookID int, filename string, content []byte) *httptest.ResponseRecorder {
	a.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, _ = fw.Write(content)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/books/"+strconv.Itoa(bookID)+"/cover", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestAPI_UpdateChecksAccessBeforeBody(t *testing.T) {
	api := newAPI(t)
	alice := api.signUp("alice")
	bob := api.signUp("bob")
	book := api.createBook(alice, "Dune", "Herbert")
	malformed := []byte(`{"title": `)

	bookPath := "/books/" + strconv.Itoa(book.ID)
	w := api.send(http.MethodPut, bookPath, bob, malformed)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not enough permissions", errorOf(t, w))
	assert.Equal(t, http.StatusNotFound, api.send(http.MethodPut, "/books/999", alice, malformed).Code)
	assert.Equal(t, http.StatusBadRequest, api.send(http.MethodPut, bookPath, alice, malformed).Code)

	w = api.do(http.MethodPost, "/reviews/", bob, map[string]any{"book_id": book.ID, "rating": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reviewPath := "/reviews/" + strconv.Itoa(decode[models.Review](t, w).ID)

	assert.Equal(t, http.StatusForbidden, api.send(http.MethodPut, reviewPath, alice, malformed).Code)
	assert.Equal(t, http.StatusNotFound, api.send(http.MethodPut, "/reviews/999", bob, malformed).Code)
	assert.Equal(t, http.StatusBadRequest, api.send(http.MethodPut, reviewPath, bob, malformed).Code)
}

func TestAPI_CoverBodyLimit(t *testing.T) {
	api := newAPI(t)
	alice := api.signUp("alice")
	book := api.createBook(alice, "Dune", "Herbert")

	w := api.uploadCover(alice, book.ID, "huge.png", bytes.Repeat([]byte("a"), 1<<10+coverFormOverhead+1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Cover file too large"}`, w.Body.String())

	// no Content-Length: the body is cut off while the form is parsed
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "stream.png")
	require.NoError(t, err)
	_, _ = fw.Write(bytes.Repeat([]byte("a"), 1<<10+coverFormOverhead+1))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/books/"+strconv.Itoa(book.ID)+"/cover", io.NopCloser(&body))
	req.ContentLength = -1
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+alice)
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	entries, err := os.ReadDir(api.covers)
	if err == nil {
		assert.Empty(t, entries)
	} else {
		assert.ErrorIs(t, err, os.ErrNotExist)
	}
}

func TestAPI_CoverUploadAndCSVExport(t *testing.T) {
	api := newAPI(t)
	admin := api.signUpAdmin("admin")
	alice := api.signUp("alice")
	bob := api.signUp("bob")
	book := api.createBook(alice, "Dune", "Herbert")

	assert.Equal(t, http.StatusForbidden, api.uploadCover(bob, book.ID, "x.png", []byte("x")).Code)
	assert.Equal(t, http.StatusNotFound, api.uploadCover(alice, 404, "x.png", []byte("x")).Code)
	assert.Equal(t, http.StatusBadRequest, api.uploadCover(alice, book.ID, "big.png", bytes.Repeat([]byte("a"), 2048)).Code)

	w := api.uploadCover(alice, book.ID, "dune.png", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	withCover := decode[models.Book](t, w)
	require.NotNil(t, withCover.CoverURL)
	assert.True(t, strings.HasSuffix(*withCover.CoverURL, "book_"+strconv.Itoa(book.ID)+"_dune.png"))

	assert.Equal(t, http.StatusOK, api.uploadCover(admin, book.ID, "admin.png", []byte("a")).Code)

	w = api.do(http.MethodGet, "/books/export/csv", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=books.csv", w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,title,author,description,cover_url,owner_id", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], strconv.Itoa(book.ID)+",Dune,Herbert,,"))
}

func TestAPI_SearchFoldsNonASCII(t *testing.T) {
	api := newAPI(t)
	alice := api.signUp("alice")
	zola := api.createBook(alice, "Thérèse Raquin", "Émile Zola")
	api.createBook(alice, "Dune", "Frank Herbert")

	for _, q := range []string{"Émile", "émile", "ÉMILE", "THÉRÈSE"} {
		key := "author"
		if q == "THÉRÈSE" {
			key = "title"
		}
		w := api.do(http.MethodGet, "/books/?"+key+"="+url.QueryEscape(q), "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		books := decode[[]models.Book](t, w)
		require.Len(t, books, 1, "%s=%s", key, q)
		assert.Equal(t, zola.ID, books[0].ID)
	}
}

func TestAPI_RegisterAsAdminNameStaysUser(t *testing.T) {
	api := newAPI(t)
	token := api.signUp("admin")

	w := api.do(http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleUser, decode[models.User](t, w).Role)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/users/", token, nil).Code)
}
