// Package httpserver exposes the libra HTTP JSON API.
package httpserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mravshan/libra/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth    service.AuthService
	catalog service.CatalogService
	avatars AvatarStore
	signKey []byte
	log     *zap.Logger
}

// New constructs an HTTP server with injected services.
func New(auth service.AuthService, catalog service.CatalogService, avatars AvatarStore, signKey []byte, log *zap.Logger) *Server {
	return &Server{auth: auth, catalog: catalog, avatars: avatars, signKey: signKey, log: log}
}

// Router builds the /api/v1 route tree with middleware applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(Recover(s.log), Logging(s.log))

	api := r.PathPrefix("/api/v1").Subrouter()

	// public
	api.HandleFunc("/users/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/users/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/users/refresh-accesstoken", s.handleRefresh).Methods(http.MethodPost)

	// catalog: token attached opportunistically by clients, used when present
	browse := api.NewRoute().Subrouter()
	browse.Use(s.optionalAuth)
	browse.HandleFunc("/top-picks", s.handleTopPicks).Methods(http.MethodGet)
	browse.HandleFunc("/trending", s.handleTrending).Methods(http.MethodGet)
	browse.HandleFunc("/popular-genre", s.handlePopularGenres).Methods(http.MethodGet)
	browse.HandleFunc("/books", s.handleBrowse).Methods(http.MethodGet)
	browse.HandleFunc("/genre", s.handleByGenre).Methods(http.MethodPost)

	// authenticated
	priv := api.NewRoute().Subrouter()
	priv.Use(s.requireAuth)
	priv.HandleFunc("/users/is-user-verified", s.handleVerify).Methods(http.MethodGet)
	priv.HandleFunc("/users/logout", s.handleLogout).Methods(http.MethodPost)
	priv.HandleFunc("/users/update-fcm-token", s.handleUpdateFCMToken).Methods(http.MethodPost)
	priv.HandleFunc("/users/edit-user", s.handleEditUser).Methods(http.MethodPost)
	priv.HandleFunc("/recent-borrows", s.handleRecentBorrows).Methods(http.MethodGet)
	priv.HandleFunc("/books/get-to-borrows", s.handleToBorrows).Methods(http.MethodGet)
	priv.HandleFunc("/books/get-previous-borrows", s.handlePreviousBorrows).Methods(http.MethodGet)
	priv.HandleFunc("/books/borrow", s.handleBorrow).Methods(http.MethodPost)
	priv.HandleFunc("/books/return", s.handleReturn).Methods(http.MethodPost)

	return r
}
