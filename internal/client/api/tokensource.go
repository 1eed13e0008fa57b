package api

import "github.com/mravshan/libra/internal/client/credstore"

// StoreTokenSource reads the access token out of the credential store on
// every request. No token stored means the request stays anonymous.
type StoreTokenSource struct {
	Store credstore.Store
}

func (s StoreTokenSource) AccessToken() (string, bool) {
	v, err := s.Store.Get(credstore.KeyAccessToken)
	return v, err == nil && v != ""
}
