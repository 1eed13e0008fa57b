package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gofrs/uuid/v5"
)

func (s *Server) handleTopPicks(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.TopPicks(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.Trending(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handlePopularGenres(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.PopularGenres(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

// handleBrowse serves a catalog page; ?page is 1-based and defaults to 1.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}
	out, err := s.catalog.Browse(r.Context(), UserID(r.Context()), page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

type genreRequest struct {
	Genre string `json:"genre"`
}

func (s *Server) handleByGenre(w http.ResponseWriter, r *http.Request) {
	var req genreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Genre == "" {
		writeError(w, http.StatusBadRequest, "empty genre")
		return
	}
	out, err := s.catalog.ByGenre(r.Context(), UserID(r.Context()), req.Genre)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleRecentBorrows(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.RecentBorrows(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleToBorrows(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.ToBorrows(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handlePreviousBorrows(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.PreviousBorrows(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

type borrowRequest struct {
	BookID string `json:"bookId"`
	Days   int    `json:"days"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	bookID, err := uuid.FromString(req.BookID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bookId")
		return
	}
	b, err := s.catalog.Borrow(r.Context(), UserID(r.Context()), bookID, req.Days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, b)
}

type returnRequest struct {
	BookID string `json:"bookId"`
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	bookID, err := uuid.FromString(req.BookID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bookId")
		return
	}
	b, err := s.catalog.Return(r.Context(), UserID(r.Context()), bookID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, b)
}
