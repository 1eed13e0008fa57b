package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mravshan/libra/internal/errs"
	"github.com/mravshan/libra/internal/model"
	"github.com/mravshan/libra/internal/repository"
	"github.com/mravshan/libra/internal/service"
)

var testKey = []byte("test-signing-key")

type fakeAuth struct {
	lastUserID uuid.UUID
	lastFCM    string
	loginErr   error
	refreshErr error
}

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput) (string, error) {
	if in.Username == "taken" {
		return "", errs.ErrAlreadyExists
	}
	return "11111111-1111-1111-1111-111111111111", nil
}

func (f *fakeAuth) LoginWithIP(_ context.Context, username, _, _ string) (model.Tokens, model.Profile, error) {
	if f.loginErr != nil {
		return model.Tokens{}, model.Profile{}, f.loginErr
	}
	return model.Tokens{AccessToken: "acc", RefreshToken: "ref"},
		model.Profile{Username: username, FirstName: "Ada"}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, raw string) (string, time.Time, error) {
	if f.refreshErr != nil {
		return "", time.Time{}, f.refreshErr
	}
	return "new-" + raw, time.Now().Add(time.Hour), nil
}

func (f *fakeAuth) Verify(_ context.Context, id uuid.UUID) error {
	f.lastUserID = id
	return nil
}

func (f *fakeAuth) Logout(_ context.Context, id uuid.UUID) error {
	f.lastUserID = id
	return nil
}

func (f *fakeAuth) UpdateFCMToken(_ context.Context, id uuid.UUID, tok string) error {
	f.lastUserID, f.lastFCM = id, tok
	return nil
}

func (f *fakeAuth) EditProfile(_ context.Context, id uuid.UUID, upd model.ProfileUpdate) (model.Profile, error) {
	f.lastUserID = id
	return model.Profile{Username: "ada", FirstName: upd.FirstName}, nil
}

type fakeCatalog struct {
	lastUserID uuid.UUID
	lastPage   int
	lastGenre  string
	listings   []model.BookListing
	borrowErr  error
}

func (f *fakeCatalog) TopPicks(_ context.Context, id uuid.UUID) ([]model.BookListing, error) {
	f.lastUserID = id
	return f.listings, nil
}

func (f *fakeCatalog) Trending(_ context.Context, id uuid.UUID) ([]model.BookListing, error) {
	f.lastUserID = id
	return f.listings, nil
}

func (f *fakeCatalog) PopularGenres(context.Context) ([]repository.GenreCount, error) {
	return []repository.GenreCount{{Genre: "sci-fi", Count: 7}}, nil
}

func (f *fakeCatalog) Browse(_ context.Context, id uuid.UUID, page int) ([]model.BookListing, error) {
	f.lastUserID, f.lastPage = id, page
	return f.listings, nil
}

func (f *fakeCatalog) ByGenre(_ context.Context, id uuid.UUID, genre string) ([]model.BookListing, error) {
	f.lastUserID, f.lastGenre = id, genre
	return f.listings, nil
}

func (f *fakeCatalog) RecentBorrows(_ context.Context, id uuid.UUID) ([]model.BookListing, error) {
	f.lastUserID = id
	return f.listings, nil
}

func (f *fakeCatalog) ToBorrows(_ context.Context, id uuid.UUID) ([]model.BookListing, error) {
	f.lastUserID = id
	return f.listings, nil
}

func (f *fakeCatalog) PreviousBorrows(_ context.Context, id uuid.UUID) ([]model.BookListing, error) {
	f.lastUserID = id
	return f.listings, nil
}

func (f *fakeCatalog) Borrow(_ context.Context, userID, bookID uuid.UUID, days int) (*model.Borrow, error) {
	if f.borrowErr != nil {
		return nil, f.borrowErr
	}
	f.lastUserID = userID
	return &model.Borrow{UserID: userID, BookID: bookID, Status: model.BorrowRequested, Days: days}, nil
}

func (f *fakeCatalog) Return(_ context.Context, userID, bookID uuid.UUID) (*model.Borrow, error) {
	f.lastUserID = userID
	now := time.Now()
	return &model.Borrow{UserID: userID, BookID: bookID, Status: model.BorrowReturned, ReturnedAt: &now}, nil
}

type nopAvatars struct{}

func (nopAvatars) Save(name string, _ io.Reader) (string, error) {
	return "/media/avatars/" + name, nil
}

func newTestServer(t *testing.T) (*fakeAuth, *fakeCatalog, http.Handler) {
	t.Helper()
	auth := &fakeAuth{}
	cat := &fakeCatalog{}
	srv := New(auth, cat, nopAvatars{}, testKey, zap.NewNop())
	return auth, cat, srv.Router()
}

func signToken(t *testing.T, userID uuid.UUID, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)
	return signed
}

func decodeData(t *testing.T, body io.Reader, into any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, into))
}

func TestLogin_OK(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"username":"ada","password":"pw"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		AccessToken  string        `json:"accessToken"`
		RefreshToken string        `json:"refreshToken"`
		User         model.Profile `json:"user"`
	}
	decodeData(t, rec.Body, &data)
	require.Equal(t, "acc", data.AccessToken)
	require.Equal(t, "ref", data.RefreshToken)
	require.Equal(t, "ada", data.User.Username)
}

func TestLogin_BadInput(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	for _, body := range []string{"{not json", `{"username":"","password":""}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	t.Parallel()
	auth, _, h := newTestServer(t)
	auth.loginErr = errs.ErrRateLimited

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"username":"ada","password":"pw"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRefresh_OK(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-accesstoken",
		strings.NewReader(`{"refreshToken":"ref"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var data map[string]string
	decodeData(t, rec.Body, &data)
	require.Equal(t, "new-ref", data["newAccessToken"])
}

func TestRefresh_Unauthorized(t *testing.T) {
	t.Parallel()
	auth, _, h := newTestServer(t)
	auth.refreshErr = errs.ErrUnauthorized

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-accesstoken",
		strings.NewReader(`{"refreshToken":"stale"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_Multipart(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("username", "ada"))
	require.NoError(t, mw.WriteField("password", "pw"))
	require.NoError(t, mw.WriteField("firstName", "Ada"))
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var data map[string]string
	decodeData(t, rec.Body, &data)
	require.NotEmpty(t, data["userId"])
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("username", "taken"))
	require.NoError(t, mw.WriteField("password", "pw"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequireAuth_NoToken(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/is-user-verified", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	uid := uuid.Must(uuid.NewV4())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/is-user-verified", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, -time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	t.Parallel()
	auth, _, h := newTestServer(t)

	uid := uuid.Must(uuid.NewV4())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/is-user-verified", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uid, auth.lastUserID)
}

func TestOptionalAuth_Anonymous(t *testing.T) {
	t.Parallel()
	_, cat, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/top-picks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uuid.Nil, cat.lastUserID)
}

func TestOptionalAuth_WithToken(t *testing.T) {
	t.Parallel()
	_, cat, h := newTestServer(t)

	uid := uuid.Must(uuid.NewV4())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/trending", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uid, cat.lastUserID)
}

func TestBrowse_Pagination(t *testing.T) {
	t.Parallel()
	_, cat, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books?page=3", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, cat.lastPage)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, cat.lastPage)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/books?page=0", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestByGenre(t *testing.T) {
	t.Parallel()
	_, cat, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/genre",
		strings.NewReader(`{"genre":"sci-fi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sci-fi", cat.lastGenre)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/genre", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBorrow_Flow(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	uid := uuid.Must(uuid.NewV4())
	bookID := uuid.Must(uuid.NewV4())
	body, err := json.Marshal(map[string]any{"bookId": bookID.String(), "days": 7})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/borrow", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var b model.Borrow
	decodeData(t, rec.Body, &b)
	require.Equal(t, bookID, b.BookID)
	require.Equal(t, 7, b.Days)
}

func TestBorrow_Conflict(t *testing.T) {
	t.Parallel()
	_, cat, h := newTestServer(t)
	cat.borrowErr = errs.ErrBorrowActive

	uid := uuid.Must(uuid.NewV4())
	bookID := uuid.Must(uuid.NewV4())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/borrow",
		strings.NewReader(`{"bookId":"`+bookID.String()+`"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestReturn_OK(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	uid := uuid.Must(uuid.NewV4())
	bookID := uuid.Must(uuid.NewV4())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/return",
		strings.NewReader(`{"bookId":"`+bookID.String()+`"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var b model.Borrow
	decodeData(t, rec.Body, &b)
	require.Equal(t, model.BorrowReturned, b.Status)
}

func TestUpdateFCMToken(t *testing.T) {
	t.Parallel()
	auth, _, h := newTestServer(t)

	uid := uuid.Must(uuid.NewV4())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/update-fcm-token",
		strings.NewReader(`{"fcmToken":"fcm-abc"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "fcm-abc", auth.lastFCM)
}

func TestEditUser_Multipart(t *testing.T) {
	t.Parallel()
	_, _, h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("firstName", "Grace"))
	require.NoError(t, mw.Close())

	uid := uuid.Must(uuid.NewV4())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/edit-user", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var p model.Profile
	decodeData(t, rec.Body, &p)
	require.Equal(t, "Grace", p.FirstName)
}
