package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/mravshan/libra/internal/model"
)

// BorrowRepository tracks which user holds which book.
type BorrowRepository interface {
	// Create inserts a borrow request. Fails with ErrBorrowActive when the
	// user already holds an active borrow for the same book.
	Create(ctx context.Context, b *model.Borrow) error
	// Return closes the user's active borrow for a book and stamps ReturnedAt.
	Return(ctx context.Context, userID, bookID uuid.UUID) (*model.Borrow, error)
	// ActiveForUser returns borrows the user still holds, newest first.
	ActiveForUser(ctx context.Context, userID uuid.UUID) ([]model.Borrow, error)
	// HistoryForUser returns returned borrows, newest first.
	HistoryForUser(ctx context.Context, userID uuid.UUID) ([]model.Borrow, error)
	// RecentForUser returns the user's most recent borrows regardless of state.
	RecentForUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Borrow, error)
	// ActiveBookIDs returns the set of book IDs the user currently holds.
	ActiveBookIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
}
