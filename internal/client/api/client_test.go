package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mravshan/libra/internal/client/credstore"
)

// staticSource is a TokenSource test double the tests can mutate.
type staticSource struct {
	token string
}

func (s *staticSource) AccessToken() (string, bool) {
	return s.token, s.token != ""
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, &staticSource{})
	if _, err := c.TopPicks(context.Background()); err != nil {
		t.Fatalf("TopPicks: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("Authorization = %q, want empty", gotAuth)
	}
}

func TestClient_TokenAttachedPerRequest(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	src := &staticSource{token: "tok-1"}
	c := New(srv.URL, src)

	if _, err := c.Trending(context.Background()); err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("Authorization = %q, want Bearer tok-1", gotAuth)
	}

	// replacing the token takes effect on the next request, no client rebuild
	src.token = "tok-2"
	if _, err := c.Trending(context.Background()); err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if gotAuth != "Bearer tok-2" {
		t.Fatalf("Authorization = %q, want Bearer tok-2", gotAuth)
	}
}

func TestClient_StoreTokenSource(t *testing.T) {
	store := credstore.NewMemStore()
	src := StoreTokenSource{Store: store}

	if _, ok := src.AccessToken(); ok {
		t.Fatalf("empty store should yield no token")
	}
	if err := store.Set(credstore.KeyAccessToken, "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	tok, ok := src.AccessToken()
	if !ok || tok != "tok" {
		t.Fatalf("AccessToken = %q %v", tok, ok)
	}
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"accessToken":"acc","refreshToken":"ref","user":{"username":"ada","firstName":"Ada"}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	res, err := c.Login(context.Background(), "ada", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken != "acc" || res.RefreshToken != "ref" || res.User.Username != "ada" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClient_RefreshAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/refresh-accesstoken" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"newAccessToken":"acc-2"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	tok, err := c.RefreshAccessToken(context.Background(), "ref")
	if err != nil || tok != "acc-2" {
		t.Fatalf("RefreshAccessToken: %q %v", tok, err)
	}
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	err := c.IsUserVerified(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "unauthorized" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestClient_RegisterMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("username") != "ada" || r.FormValue("region") != "eu" {
			t.Errorf("unexpected fields: %v", r.MultipartForm.Value)
		}
		if _, _, err := r.FormFile("avatar"); err != nil {
			t.Errorf("FormFile: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"userId":"u-1"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	id, err := c.Register(context.Background(), RegisterForm{
		Username:   "ada",
		Password:   "pw",
		Region:     "eu",
		AvatarName: "me.png",
		Avatar:     strings.NewReader("png-bytes"),
	})
	if err != nil || id != "u-1" {
		t.Fatalf("Register: %q %v", id, err)
	}
}

func TestClient_Borrow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"bookId":"2b39b362-0000-0000-0000-000000000000","status":"requested","days":7}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	b, err := c.Borrow(context.Background(), "2b39b362-0000-0000-0000-000000000000", 7)
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if b.Days != 7 || !b.Status.Active() {
		t.Fatalf("unexpected borrow: %+v", b)
	}
}
