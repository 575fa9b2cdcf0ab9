package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shelfwise/apiserver/config"
	"github.com/shelfwise/apiserver/internal/db"
	"github.com/shelfwise/apiserver/internal/db/dbtest"
	"github.com/shelfwise/apiserver/internal/server"
	"github.com/shelfwise/apiserver/internal/services"
	"github.com/shelfwise/apiserver/internal/store"
)

type testAPI struct {
	t     *testing.T
	srv   *httptest.Server
	users *services.UserService
}

func newTestAPI(t *testing.T, mutate func(*config.Config)) *testAPI {
	t.Helper()

	conn := dbtest.Open(t)
	cfg := config.Config{
		JWTSecret: "test-secret",
		Database:  config.DatabaseConfig{Driver: db.DriverSQLite},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	hasher := services.BcryptHasher{Cost: bcrypt.MinCost}

	router, err := server.NewRouter(cfg, server.Dependencies{DB: conn, Hasher: hasher})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testAPI{
		t:     t,
		srv:   srv,
		users: services.NewUserService(store.New(conn, store.DialectSQLite), hasher),
	}
}

func (a *testAPI) do(method, path, token string, body any) (int, []byte) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, data
}

// signup registers an account and returns a bearer token for it.
func (a *testAPI) signup(name, email string) string {
	a.t.Helper()

	status, body := a.do(http.MethodPost, "/api/register/", "", map[string]string{
		"name": name, "email": email, "password": "pw",
	})
	require.Equal(a.t, http.StatusCreated, status, string(body))

	status, body = a.do(http.MethodPost, "/api/login/", "", map[string]string{
		"email": email, "password": "pw",
	})
	require.Equal(a.t, http.StatusOK, status, string(body))

	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(a.t, json.Unmarshal(body, &login))
	require.NotEmpty(a.t, login.AccessToken)
	return login.AccessToken
}

func (a *testAPI) admin(name, email string) string {
	a.t.Helper()
	token := a.signup(name, email)
	_, err := a.users.GrantAdmin(context.Background(), email)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) createBook(token, title, author, genre string) int {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/books/", token, map[string]string{
		"title": title, "author": author, "genre": genre,
	})
	require.Equal(a.t, http.StatusCreated, status, string(body))

	var book struct {
		ID int `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(body, &book))
	return book.ID
}

type bookDetail struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	AverageRating float64 `json:"average_rating"`
	Reviews       []struct {
		ID     int `json:"id"`
		Rating int `json:"rating"`
	} `json:"reviews"`
}

func bookPath(id int, suffix string) string {
	return "/api/books/" + strconv.Itoa(id) + suffix
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Code
}

func TestNewRouterRequiresSecret(t *testing.T) {
	_, err := server.NewRouter(config.Config{}, server.Dependencies{DB: dbtest.Open(t)})
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, nil)
	status, _ := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCreateBookAndReadBack(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.signup("Alice", "a@x.com")

	id := api.createBook(token, "Dune", "Herbert", "SciFi")

	status, body := api.do(http.MethodGet, bookPath(id, "/"), token, nil)
	require.Equal(t, http.StatusOK, status)
	var detail bookDetail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, "Dune", detail.Title)
	assert.Equal(t, 0.0, detail.AverageRating)
	assert.NotNil(t, detail.Reviews)
	assert.Empty(t, detail.Reviews)
}

func TestTwoReviewsAverage(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.signup("Alice", "a@x.com")
	bob := api.signup("Bob", "b@x.com")
	id := api.createBook(alice, "Dune", "Herbert", "SciFi")

	status, body := api.do(http.MethodPost, bookPath(id, "/review/"), alice, map[string]any{"rating": 4})
	require.Equal(t, http.StatusCreated, status, string(body))
	status, body = api.do(http.MethodPost, bookPath(id, "/review/"), bob, map[string]any{"rating": 5, "review_text": "great"})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = api.do(http.MethodGet, bookPath(id, ""), alice, nil)
	require.Equal(t, http.StatusOK, status)
	var detail bookDetail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.InDelta(t, 4.5, detail.AverageRating, 1e-9)
	assert.Len(t, detail.Reviews, 2)

	status, body = api.do(http.MethodPost, bookPath(id, "/review/"), alice, map[string]any{"rating": 3})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.ErrDuplicateReview.Code, errorCode(t, body))

	status, body = api.do(http.MethodPost, bookPath(id, "/rating/"), alice, nil)
	require.Equal(t, http.StatusOK, status)
	var rating struct {
		AverageRating float64 `json:"average_rating"`
	}
	require.NoError(t, json.Unmarshal(body, &rating))
	assert.InDelta(t, 4.5, rating.AverageRating, 1e-9)
}

func TestReviewRatingBounds(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.signup("Alice", "a@x.com")
	id := api.createBook(token, "Dune", "Herbert", "SciFi")

	for _, rating := range []int{0, 6} {
		status, body := api.do(http.MethodPost, bookPath(id, "/review/"), token, map[string]any{"rating": rating})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.ErrRatingOutOfRange.Code, errorCode(t, body))
	}

	status, body := api.do(http.MethodPost, bookPath(id, "/review/"), token, map[string]any{"review_text": "nice"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.ErrRatingRequired.Code, errorCode(t, body))

	status, _ = api.do(http.MethodPost, bookPath(999, "/review/"), token, map[string]any{"rating": 3})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = api.do(http.MethodPost, bookPath(999, "/review/"), token, map[string]any{"rating": 0})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, services.ErrBookNotFound.Code, errorCode(t, body))

	status, body = api.do(http.MethodGet, bookPath(id, "/"), token, nil)
	require.Equal(t, http.StatusOK, status)
	var detail bookDetail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Empty(t, detail.Reviews)
}

func TestEditReviewOnlyByAuthor(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.signup("Alice", "a@x.com")
	bob := api.signup("Bob", "b@x.com")
	id := api.createBook(alice, "Dune", "Herbert", "SciFi")

	status, body := api.do(http.MethodPost, bookPath(id, "/review/"), alice, map[string]any{"rating": 2})
	require.Equal(t, http.StatusCreated, status)
	var review struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &review))

	path := "/api/reviews/" + strconv.Itoa(review.ID) + "/"
	status, _ = api.do(http.MethodPatch, path, bob, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodPatch, path, alice, map[string]any{"rating": 4})
	require.Equal(t, http.StatusOK, status)

	_, body = api.do(http.MethodGet, bookPath(id, ""), alice, nil)
	var detail bookDetail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.InDelta(t, 4.0, detail.AverageRating, 1e-9)
}

func TestNonAdminCannotPatchBook(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.signup("Alice", "a@x.com")
	id := api.createBook(token, "Dune", "Herbert", "SciFi")

	status, body := api.do(http.MethodPatch, bookPath(id, "/"), token, map[string]string{"genre": "Classic"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, services.ErrNotAdmin.Code, errorCode(t, body))

	admin := api.admin("Root", "root@x.com")
	status, body = api.do(http.MethodPatch, bookPath(id, "/"), admin, map[string]string{"genre": "Classic"})
	require.Equal(t, http.StatusOK, status, string(body))
	var book struct {
		Title string `json:"title"`
		Genre string `json:"genre"`
	}
	require.NoError(t, json.Unmarshal(body, &book))
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Classic", book.Genre)
}

func TestPromoteToAdmin(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.admin("Root", "root@x.com")
	user := api.signup("Alice", "a@x.com")

	status, _ := api.do(http.MethodPost, "/api/promote-to-admin/", user, map[string]string{"email": "root@x.com"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodPost, "/api/promote-to-admin/", admin, map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodPost, "/api/promote-to-admin/", admin, map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusOK, status)

	status, body := api.do(http.MethodPost, "/api/promote-to-admin/", admin, map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.ErrAlreadyAdmin.Code, errorCode(t, body))
}

func TestDeleteBookCascades(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.admin("Root", "root@x.com")
	user := api.signup("Alice", "a@x.com")
	id := api.createBook(user, "Dune", "Herbert", "SciFi")

	status, _ := api.do(http.MethodPost, bookPath(id, "/review/"), user, map[string]any{"rating": 5})
	require.Equal(t, http.StatusCreated, status)
	status, _ = api.do(http.MethodPost, "/api/library/", user, map[string]any{"book_id": id, "status": "reading"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = api.do(http.MethodDelete, bookPath(id, "/"), user, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodDelete, bookPath(id, "/"), admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = api.do(http.MethodGet, bookPath(id, "/"), user, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := api.do(http.MethodGet, "/api/profile/", user, nil)
	require.Equal(t, http.StatusOK, status)
	var profile struct {
		Library []any `json:"library"`
		Reviews []any `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Empty(t, profile.Library)
	assert.Empty(t, profile.Reviews)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body := api.do(http.MethodGet, "/api/books/", "", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "unauthenticated", errorCode(t, body))

	status, _ = api.do(http.MethodGet, "/api/library/", "not-a-jwt", nil)
	assert.Equal(t, http.StatusForbidden, status)

	api.signup("Alice", "a@x.com")
	status, _ = api.do(http.MethodPost, "/api/login/", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	api := newTestAPI(t, nil)
	api.signup("Alice", "a@x.com")

	status, body := api.do(http.MethodPost, "/api/register/", "", map[string]string{
		"name": "Other", "email": "a@x.com", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.ErrDuplicateEmail.Code, errorCode(t, body))
}

func TestSearchBooks(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.signup("Alice", "a@x.com")
	api.createBook(token, "Dune", "Herbert", "SciFi")
	api.createBook(token, "Emma", "Austen", "Classic")

	status, body := api.do(http.MethodGet, "/api/books/?author=herb", token, nil)
	require.Equal(t, http.StatusOK, status)
	var books []struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(body, &books))
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)

	api.createBook(token, "Élan", "Bergson", "Essai")
	status, body = api.do(http.MethodGet, "/api/books/?title="+url.QueryEscape("élan"), token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &books))
	require.Len(t, books, 1)
	assert.Equal(t, "Élan", books[0].Title)

	status, body = api.do(http.MethodGet, "/api/books?title=zzz", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "no_books_found", errorCode(t, body))

	status, _ = api.do(http.MethodPost, "/api/books/", token, map[string]string{
		"title": "Dune", "author": "Herbert", "genre": "Other",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBookCreateRequiresAdmin(t *testing.T) {
	api := newTestAPI(t, func(cfg *config.Config) { cfg.BookCreateRequiresAdmin = true })
	user := api.signup("Alice", "a@x.com")

	status, _ := api.do(http.MethodPost, "/api/books/", user, map[string]string{
		"title": "Dune", "author": "Herbert", "genre": "SciFi",
	})
	assert.Equal(t, http.StatusForbidden, status)

	admin := api.admin("Root", "root@x.com")
	api.createBook(admin, "Dune", "Herbert", "SciFi")
}

func TestLibraryFlow(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.signup("Alice", "a@x.com")
	dune := api.createBook(token, "Dune", "Herbert", "SciFi")
	emma := api.createBook(token, "Emma", "Austen", "Classic")

	status, _ := api.do(http.MethodPost, "/api/library/", token, map[string]any{"book_id": dune, "status": "reading"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = api.do(http.MethodPost, "/api/library/", token, map[string]any{"book_id": emma, "status": "wishlist"})
	require.Equal(t, http.StatusCreated, status)

	status, body := api.do(http.MethodPost, "/api/library/", token, map[string]any{"book_id": dune, "status": "completed"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.ErrAlreadyInLibrary.Code, errorCode(t, body))

	status, body = api.do(http.MethodPost, "/api/library/", token, map[string]any{"book_id": emma, "status": "abandoned"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.ErrInvalidStatus.Code, errorCode(t, body))

	status, _ = api.do(http.MethodPatch, "/api/library/"+strconv.Itoa(dune)+"/", token, map[string]string{"new_status": "completed"})
	require.Equal(t, http.StatusOK, status)

	status, body = api.do(http.MethodGet, "/api/library/", token, nil)
	require.Equal(t, http.StatusOK, status)
	var shelves struct {
		Reading   []struct{ BookID int `json:"book_id"` } `json:"reading"`
		Completed []struct{ BookID int `json:"book_id"` } `json:"completed"`
		Wishlist  []struct{ BookID int `json:"book_id"` } `json:"wishlist"`
	}
	require.NoError(t, json.Unmarshal(body, &shelves))
	assert.Empty(t, shelves.Reading)
	require.Len(t, shelves.Completed, 1)
	assert.Equal(t, dune, shelves.Completed[0].BookID)
	require.Len(t, shelves.Wishlist, 1)

	status, _ = api.do(http.MethodDelete, "/api/library/"+strconv.Itoa(emma), token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodDelete, "/api/library/"+strconv.Itoa(emma), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChangePassword(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.signup("Alice", "a@x.com")

	status, _ := api.do(http.MethodPut, "/api/profile/password/", token, map[string]string{"new_password": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodPut, "/api/profile/password/", token, map[string]string{"new_password": "next"})
	require.Equal(t, http.StatusOK, status)

	status, _ = api.do(http.MethodPost, "/api/login/", "", map[string]string{"email": "a@x.com", "password": "next"})
	assert.Equal(t, http.StatusOK, status)
}

func TestCoverWithoutStorage(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.admin("Root", "root@x.com")
	id := api.createBook(admin, "Dune", "Herbert", "SciFi")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("cover", "cover.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPut, api.srv.URL+bookPath(id, "/cover/"), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := api.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	status, _ := api.do(http.MethodGet, bookPath(id, "/cover"), admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
