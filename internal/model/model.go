// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID         uuid.UUID // PK
	Username   string    // unique
	Email      string
	FirstName  string
	MiddleName string
	LastName   string
	AvatarURL  string
	Region     string
	FCMToken   string // device push token; empty until the client registers one
	PwdHash    []byte // Argon2id(password, SaltAuth)
	SaltAuth   []byte // per-user auth salt
	CreatedAt  time.Time
}

// Profile is the wire shape of a user that clients cache locally.
type Profile struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
	AvatarURL  string `json:"avatar,omitempty"`
	Region     string `json:"region,omitempty"`
}

// ProfileOf projects a stored user onto its client-visible profile.
func ProfileOf(u *User) Profile {
	return Profile{
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		MiddleName: u.MiddleName,
		LastName:   u.LastName,
		AvatarURL:  u.AvatarURL,
		Region:     u.Region,
	}
}

// ProfileUpdate carries fields of an edit-profile submission. Empty strings
// leave the current value untouched, except AvatarURL which is only set when
// a new avatar was uploaded.
type ProfileUpdate struct {
	Email      string
	FirstName  string
	MiddleName string
	LastName   string
	Region     string
	AvatarURL  string
}

// RefreshToken is a persisted, hashed refresh credential. The raw token is
// returned to the client once and never stored.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash []byte // sha256 of the raw token
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Book is a catalog entry.
type Book struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre"`
	CoverURL    string    `json:"cover,omitempty"`
	PageCount   int       `json:"pageCount"`
	TotalRating float64   `json:"totalRating"`
	BorrowCount int64     `json:"borrowCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BorrowStatus enumerates the lifecycle of a borrow record.
type BorrowStatus string

const (
	BorrowRequested BorrowStatus = "requested"
	BorrowApproved  BorrowStatus = "approved"
	BorrowReturned  BorrowStatus = "returned"
)

// Active reports whether the borrow still holds the book.
func (s BorrowStatus) Active() bool { return s == BorrowRequested || s == BorrowApproved }

// Borrow records a user holding (or having held) a book.
type Borrow struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"userId"`
	BookID      uuid.UUID    `json:"bookId"`
	Status      BorrowStatus `json:"status"`
	Days        int          `json:"days"` // requested borrow duration
	RequestedAt time.Time    `json:"requestedAt"`
	ReturnedAt  *time.Time   `json:"returnedAt,omitempty"`
}

// BookListing is a book annotated with per-user status flags. The flags mirror
// what clients branch on: CanBeBorrowed for catalog entries, ToReturn for
// borrow history (nil = never borrowed, true = still held, false = returned).
type BookListing struct {
	Book
	CanBeBorrowed bool  `json:"canBeBorrowed"`
	ToReturn      *bool `json:"toReturn,omitempty"`
	Remind        bool  `json:"remind,omitempty"`
}
