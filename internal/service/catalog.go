package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/mravshan/libra/internal/model"
	"github.com/mravshan/libra/internal/repository"
)

// Default page size for paginated catalog browsing.
const browsePageSize = 20

// Shelf size for the curated home-screen sections.
const shelfSize = 10

// CatalogService defines catalog browsing and borrow/return operations.
type CatalogService interface {
	// TopPicks returns the highest-rated books annotated for the user.
	TopPicks(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error)
	// Trending returns the most-borrowed books annotated for the user.
	Trending(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error)
	// PopularGenres returns genres ordered by borrow volume.
	PopularGenres(ctx context.Context) ([]repository.GenreCount, error)
	// Browse returns a catalog page (1-based) annotated for the user.
	Browse(ctx context.Context, userID uuid.UUID, page int) ([]model.BookListing, error)
	// ByGenre returns all books of a genre annotated for the user.
	ByGenre(ctx context.Context, userID uuid.UUID, genre string) ([]model.BookListing, error)
	// RecentBorrows returns the user's latest borrows as listings.
	RecentBorrows(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error)
	// ToBorrows returns books the user currently holds (ToReturn=true).
	ToBorrows(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error)
	// PreviousBorrows returns books the user has returned (ToReturn=false).
	PreviousBorrows(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error)
	// Borrow places a borrow request for the given number of days.
	Borrow(ctx context.Context, userID, bookID uuid.UUID, days int) (*model.Borrow, error)
	// Return closes the user's active borrow for the book.
	Return(ctx context.Context, userID, bookID uuid.UUID) (*model.Borrow, error)
}

type CatalogServiceImpl struct {
	books   repository.BookRepository
	borrows repository.BorrowRepository
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(books repository.BookRepository, borrows repository.BorrowRepository) *CatalogServiceImpl {
	return &CatalogServiceImpl{books: books, borrows: borrows}
}

// TopPicks returns the highest-rated books annotated for the user.
func (s *CatalogServiceImpl) TopPicks(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error) {
	bs, err := s.books.TopRated(ctx, shelfSize)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, userID, bs)
}

// Trending returns the most-borrowed books annotated for the user.
func (s *CatalogServiceImpl) Trending(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error) {
	bs, err := s.books.MostBorrowed(ctx, shelfSize)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, userID, bs)
}

// PopularGenres returns genres ordered by borrow volume.
func (s *CatalogServiceImpl) PopularGenres(ctx context.Context) ([]repository.GenreCount, error) {
	return s.books.PopularGenres(ctx, shelfSize)
}

// Browse returns a catalog page annotated for the user.
func (s *CatalogServiceImpl) Browse(ctx context.Context, userID uuid.UUID, page int) ([]model.BookListing, error) {
	bs, err := s.books.List(ctx, page, browsePageSize)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, userID, bs)
}

// ByGenre returns all books of a genre annotated for the user.
func (s *CatalogServiceImpl) ByGenre(ctx context.Context, userID uuid.UUID, genre string) ([]model.BookListing, error) {
	if genre == "" {
		return nil, errors.New("validation: empty genre")
	}
	bs, err := s.books.ListByGenre(ctx, genre)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, userID, bs)
}

// RecentBorrows returns the user's latest borrows as listings.
func (s *CatalogServiceImpl) RecentBorrows(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	recents, err := s.borrows.RecentForUser(ctx, userID, shelfSize)
	if err != nil {
		return nil, err
	}
	return s.fromBorrows(ctx, recents)
}

// ToBorrows returns books the user currently holds.
func (s *CatalogServiceImpl) ToBorrows(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	active, err := s.borrows.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.fromBorrows(ctx, active)
}

// PreviousBorrows returns books the user has returned.
func (s *CatalogServiceImpl) PreviousBorrows(ctx context.Context, userID uuid.UUID) ([]model.BookListing, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	hist, err := s.borrows.HistoryForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.fromBorrows(ctx, hist)
}

// Borrow places a borrow request. The repository enforces a single active
// borrow per user/book; the aggregate counter is bumped best-effort after.
func (s *CatalogServiceImpl) Borrow(ctx context.Context, userID, bookID uuid.UUID, days int) (*model.Borrow, error) {
	if userID == uuid.Nil || bookID == uuid.Nil {
		return nil, errors.New("validation: empty userID/bookID")
	}
	if days <= 0 {
		days = 14
	}
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	b := &model.Borrow{
		ID:     id,
		UserID: userID,
		BookID: bookID,
		Status: model.BorrowRequested,
		Days:   days,
	}
	if err := s.borrows.Create(ctx, b); err != nil {
		return nil, err
	}
	_ = s.books.IncBorrowCount(ctx, bookID)
	return b, nil
}

// Return closes the user's active borrow for the book.
func (s *CatalogServiceImpl) Return(ctx context.Context, userID, bookID uuid.UUID) (*model.Borrow, error) {
	if userID == uuid.Nil || bookID == uuid.Nil {
		return nil, errors.New("validation: empty userID/bookID")
	}
	return s.borrows.Return(ctx, userID, bookID)
}

// annotate marks catalog entries with the user's active-borrow state.
func (s *CatalogServiceImpl) annotate(ctx context.Context, userID uuid.UUID, bs []model.Book) ([]model.BookListing, error) {
	var held map[uuid.UUID]bool
	if userID != uuid.Nil {
		var err error
		held, err = s.borrows.ActiveBookIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	out := make([]model.BookListing, 0, len(bs))
	for _, b := range bs {
		out = append(out, model.BookListing{Book: b, CanBeBorrowed: !held[b.ID]})
	}
	return out, nil
}

// fromBorrows resolves borrow records into listings with the ToReturn flag set.
func (s *CatalogServiceImpl) fromBorrows(ctx context.Context, borrows []model.Borrow) ([]model.BookListing, error) {
	out := make([]model.BookListing, 0, len(borrows))
	for _, br := range borrows {
		book, err := s.books.GetByID(ctx, br.BookID)
		if err != nil {
			return nil, err
		}
		toReturn := br.Status.Active()
		out = append(out, model.BookListing{Book: *book, ToReturn: &toReturn})
	}
	return out, nil
}
