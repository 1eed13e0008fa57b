// Package api is the HTTP client for the libra backend. It speaks the
// /api/v1 JSON contract and injects the bearer token transparently.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/mravshan/libra/internal/model"
)

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// TokenSource supplies the current bearer token at request time.
// ok=false means the request goes out without an Authorization header.
type TokenSource interface {
	AccessToken() (token string, ok bool)
}

// authTransport attaches "Authorization: Bearer <token>" to every request
// when a token is available. The token is read per request, never cached, so
// a replaced token takes effect immediately.
type authTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if tok, ok := t.tokens.AccessToken(); ok {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return t.base.RoundTrip(req)
}

// Client calls the libra backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client for the given base URL (scheme://host[:port]).
// tokens may be nil for an always-anonymous client.
func New(baseURL string, tokens TokenSource) *Client {
	base := http.DefaultTransport
	rt := base
	if tokens != nil {
		rt = &authTransport{base: base, tokens: tokens}
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: rt, Timeout: 30 * time.Second},
	}
}

// do sends a JSON request and decodes the {"data": ...} envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

// LoginResult carries the token pair and the profile returned by login.
type LoginResult struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         model.Profile `json:"user"`
}

// Login authenticates and returns fresh tokens plus the user's profile.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": username, "password": password}, &out)
	return out, err
}

// RefreshAccessToken exchanges a refresh token for a new access token.
// The refresh token itself is not rotated.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var out struct {
		NewAccessToken string `json:"newAccessToken"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/users/refresh-accesstoken",
		map[string]string{"refreshToken": refreshToken}, &out)
	return out.NewAccessToken, err
}

// IsUserVerified checks that the current bearer token still maps to an account.
func (c *Client) IsUserVerified(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/users/is-user-verified", nil, nil)
}

// Logout revokes the refresh tokens server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/users/logout", struct{}{}, nil)
}

// UpdateFCMToken publishes the device push token.
func (c *Client) UpdateFCMToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/users/update-fcm-token",
		map[string]string{"fcmToken": token}, nil)
}

// RegisterForm is a registration submission. Avatar is optional.
type RegisterForm struct {
	Username   string
	Email      string
	FirstName  string
	MiddleName string
	LastName   string
	Password   string
	Region     string
	AvatarName string
	Avatar     io.Reader
}

// Register creates an account via a multipart form and returns the new user id.
func (c *Client) Register(ctx context.Context, f RegisterForm) (string, error) {
	fields := map[string]string{
		"username":   f.Username,
		"email":      f.Email,
		"firstName":  f.FirstName,
		"middleName": f.MiddleName,
		"lastName":   f.LastName,
		"password":   f.Password,
		"region":     f.Region,
	}
	var out struct {
		UserID string `json:"userId"`
	}
	err := c.multipart(ctx, "/api/v1/users/register", fields, f.AvatarName, f.Avatar, &out)
	return out.UserID, err
}

// ProfileForm is an edit-profile submission. Empty fields keep current values.
type ProfileForm struct {
	Email      string
	FirstName  string
	MiddleName string
	LastName   string
	Region     string
	AvatarName string
	Avatar     io.Reader
}

// EditProfile applies a profile edit and returns the updated profile.
func (c *Client) EditProfile(ctx context.Context, f ProfileForm) (model.Profile, error) {
	fields := map[string]string{
		"email":      f.Email,
		"firstName":  f.FirstName,
		"middleName": f.MiddleName,
		"lastName":   f.LastName,
		"region":     f.Region,
	}
	var out model.Profile
	err := c.multipart(ctx, "/api/v1/users/edit-user", fields, f.AvatarName, f.Avatar, &out)
	return out, err
}

func (c *Client) multipart(ctx context.Context, path string, fields map[string]string,
	avatarName string, avatar io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if avatar != nil {
		part, err := mw.CreateFormFile("avatar", avatarName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, avatar); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

// TopPicks returns the highest-rated shelf.
func (c *Client) TopPicks(ctx context.Context) ([]model.BookListing, error) {
	var out []model.BookListing
	err := c.do(ctx, http.MethodGet, "/api/v1/top-picks", nil, &out)
	return out, err
}

// Trending returns the most-borrowed shelf.
func (c *Client) Trending(ctx context.Context) ([]model.BookListing, error) {
	var out []model.BookListing
	err := c.do(ctx, http.MethodGet, "/api/v1/trending", nil, &out)
	return out, err
}

// GenreCount mirrors the popular-genre response rows.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int64  `json:"count"`
}

// PopularGenres returns genres ordered by borrow volume.
func (c *Client) PopularGenres(ctx context.Context) ([]GenreCount, error) {
	var out []GenreCount
	err := c.do(ctx, http.MethodGet, "/api/v1/popular-genre", nil, &out)
	return out, err
}

// Browse returns a catalog page (1-based).
func (c *Client) Browse(ctx context.Context, page int) ([]model.BookListing, error) {
	var out []model.BookListing
	err := c.do(ctx, http.MethodGet, "/api/v1/books?page="+strconv.Itoa(page), nil, &out)
	return out, err
}

// ByGenre returns all books of a genre.
func (c *Client) ByGenre(ctx context.Context, genre string) ([]model.BookListing, error) {
	var out []model.BookListing
	err := c.do(ctx, http.MethodPost, "/api/v1/genre", map[string]string{"genre": genre}, &out)
	return out, err
}

// RecentBorrows returns the user's latest borrows.
func (c *Client) RecentBorrows(ctx context.Context) ([]model.BookListing, error) {
	var out []model.BookListing
	err := c.do(ctx, http.MethodGet, "/api/v1/recent-borrows", nil, &out)
	return out, err
}

// ToBorrows returns books the user currently holds.
func (c *Client) ToBorrows(ctx context.Context) ([]model.BookListing, error) {
	var out []model.BookListing
	err := c.do(ctx, http.MethodGet, "/api/v1/books/get-to-borrows", nil, &out)
	return out, err
}

// PreviousBorrows returns books the user has returned.
func (c *Client) PreviousBorrows(ctx context.Context) ([]model.BookListing, error) {
	var out []model.BookListing
	err := c.do(ctx, http.MethodGet, "/api/v1/books/get-previous-borrows", nil, &out)
	return out, err
}

// Borrow places a borrow request.
func (c *Client) Borrow(ctx context.Context, bookID string, days int) (*model.Borrow, error) {
	var out model.Borrow
	err := c.do(ctx, http.MethodPost, "/api/v1/books/borrow",
		map[string]any{"bookId": bookID, "days": days}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Return closes the active borrow for the book.
func (c *Client) Return(ctx context.Context, bookID string) (*model.Borrow, error) {
	var out model.Borrow
	err := c.do(ctx, http.MethodPost, "/api/v1/books/return",
		map[string]string{"bookId": bookID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
