package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/mravshan/libra/internal/errs"
	"github.com/mravshan/libra/internal/model"
)

// BorrowRepo implements BorrowRepository using PostgreSQL.
type BorrowRepo struct{ db *DB }

// NewBorrowRepo constructs a borrow repository.
func NewBorrowRepo(db *DB) *BorrowRepo { return &BorrowRepo{db: db} }

const borrowCols = `id, user_id, book_id, status, days, requested_at, returned_at`

// Create inserts a borrow request. A partial unique index on
// (user_id, book_id) WHERE status IN ('requested','approved') rejects a second
// active borrow for the same book.
func (r *BorrowRepo) Create(ctx context.Context, b *model.Borrow) error {
	const q = `
INSERT INTO borrows (id, user_id, book_id, status, days)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, b.ID, b.UserID, b.BookID, b.Status, b.Days)
	if isUniqueViolation(err) {
		return errs.ErrBorrowActive
	}
	return err
}

// Return closes the user's active borrow for a book inside a transaction so
// the row is not returned twice under concurrent requests.
func (r *BorrowRepo) Return(ctx context.Context, userID, bookID uuid.UUID) (b *model.Borrow, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `
SELECT id FROM borrows
WHERE user_id=$1 AND book_id=$2 AND status IN ('requested','approved')
FOR UPDATE`
	var id uuid.UUID
	if err = tx.QueryRow(ctx, sel, userID, bookID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotBorrowed
		}
		return nil, err
	}

	const upd = `
UPDATE borrows SET status='returned', returned_at=now()
WHERE id=$1
RETURNING ` + borrowCols
	row := tx.QueryRow(ctx, upd, id)
	var out model.Borrow
	if err = row.Scan(&out.ID, &out.UserID, &out.BookID, &out.Status, &out.Days, &out.RequestedAt, &out.ReturnedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveForUser returns borrows the user still holds, newest first.
func (r *BorrowRepo) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]model.Borrow, error) {
	const q = `
SELECT ` + borrowCols + ` FROM borrows
WHERE user_id=$1 AND status IN ('requested','approved')
ORDER BY requested_at DESC`
	return r.queryBorrows(ctx, q, userID)
}

// HistoryForUser returns returned borrows, newest first.
func (r *BorrowRepo) HistoryForUser(ctx context.Context, userID uuid.UUID) ([]model.Borrow, error) {
	const q = `
SELECT ` + borrowCols + ` FROM borrows
WHERE user_id=$1 AND status='returned'
ORDER BY returned_at DESC`
	return r.queryBorrows(ctx, q, userID)
}

// RecentForUser returns the user's most recent borrows regardless of state.
func (r *BorrowRepo) RecentForUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Borrow, error) {
	const q = `
SELECT ` + borrowCols + ` FROM borrows
WHERE user_id=$1
ORDER BY requested_at DESC
LIMIT $2`
	return r.queryBorrows(ctx, q, userID, limit)
}

// ActiveBookIDs returns the set of book IDs the user currently holds.
func (r *BorrowRepo) ActiveBookIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	const q = `SELECT book_id FROM borrows WHERE user_id=$1 AND status IN ('requested','approved')`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[uuid.UUID]bool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *BorrowRepo) queryBorrows(ctx context.Context, q string, args ...any) ([]model.Borrow, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Borrow
	for rows.Next() {
		var b model.Borrow
		if err := rows.Scan(&b.ID, &b.UserID, &b.BookID, &b.Status, &b.Days, &b.RequestedAt, &b.ReturnedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
