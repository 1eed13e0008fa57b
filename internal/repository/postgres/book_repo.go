package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/mravshan/libra/internal/errs"
	"github.com/mravshan/libra/internal/model"
	"github.com/mravshan/libra/internal/repository"
)

// BookRepo implements BookRepository using PostgreSQL.
type BookRepo struct{ db *DB }

// NewBookRepo constructs a book repository.
func NewBookRepo(db *DB) *BookRepo { return &BookRepo{db: db} }

const bookCols = `id, title, author, genre, cover_url, page_count, total_rating, borrow_count, created_at`

// GetByID selects a single book.
func (r *BookRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var b model.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.CoverURL,
		&b.PageCount, &b.TotalRating, &b.BorrowCount, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List returns a catalog page ordered by title. Pages are 1-based.
func (r *BookRepo) List(ctx context.Context, page, perPage int) ([]model.Book, error) {
	if page < 1 {
		page = 1
	}
	const q = `SELECT ` + bookCols + ` FROM books ORDER BY title ASC LIMIT $1 OFFSET $2`
	return r.queryBooks(ctx, q, perPage, (page-1)*perPage)
}

// ListByGenre returns all books of a genre ordered by title.
func (r *BookRepo) ListByGenre(ctx context.Context, genre string) ([]model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE genre=$1 ORDER BY title ASC`
	return r.queryBooks(ctx, q, genre)
}

// TopRated returns the highest-rated books.
func (r *BookRepo) TopRated(ctx context.Context, limit int) ([]model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books ORDER BY total_rating DESC, title ASC LIMIT $1`
	return r.queryBooks(ctx, q, limit)
}

// MostBorrowed returns books ordered by total borrow count.
func (r *BookRepo) MostBorrowed(ctx context.Context, limit int) ([]model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books ORDER BY borrow_count DESC, title ASC LIMIT $1`
	return r.queryBooks(ctx, q, limit)
}

// PopularGenres returns genres ordered by borrow volume.
func (r *BookRepo) PopularGenres(ctx context.Context, limit int) ([]repository.GenreCount, error) {
	const q = `
SELECT genre, SUM(borrow_count) AS borrows
FROM books
GROUP BY genre
ORDER BY borrows DESC, genre ASC
LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.GenreCount
	for rows.Next() {
		var gc repository.GenreCount
		if err := rows.Scan(&gc.Genre, &gc.Count); err != nil {
			return nil, err
		}
		out = append(out, gc)
	}
	return out, rows.Err()
}

// IncBorrowCount bumps the aggregate borrow counter.
func (r *BookRepo) IncBorrowCount(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE books SET borrow_count = borrow_count + 1 WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *BookRepo) queryBooks(ctx context.Context, q string, args ...any) ([]model.Book, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.CoverURL,
			&b.PageCount, &b.TotalRating, &b.BorrowCount, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
