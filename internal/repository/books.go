package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/mravshan/libra/internal/model"
)

// GenreCount reports how many catalog entries a genre holds.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int64  `json:"count"`
}

// BookRepository provides read access to the catalog.
type BookRepository interface {
	// GetByID loads a single book.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error)
	// List returns a catalog page ordered by title.
	List(ctx context.Context, page, perPage int) ([]model.Book, error)
	// ListByGenre returns all books of a genre.
	ListByGenre(ctx context.Context, genre string) ([]model.Book, error)
	// TopRated returns the highest-rated books.
	TopRated(ctx context.Context, limit int) ([]model.Book, error)
	// MostBorrowed returns books ordered by total borrow count.
	MostBorrowed(ctx context.Context, limit int) ([]model.Book, error)
	// PopularGenres returns genres ordered by borrow volume.
	PopularGenres(ctx context.Context, limit int) ([]GenreCount, error)
	// IncBorrowCount bumps the aggregate borrow counter.
	IncBorrowCount(ctx context.Context, id uuid.UUID) error
}
