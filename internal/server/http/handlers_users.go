package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mravshan/libra/internal/model"
	"github.com/mravshan/libra/internal/service"
)

// maxUploadBytes caps multipart submissions (avatar included).
const maxUploadBytes = 8 << 20

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginData struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         model.Profile `json:"user"`
}

// handleLogin authenticates a user and returns tokens plus the cached profile.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "empty username/password")
		return
	}

	tokens, profile, err := s.auth.LoginWithIP(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, loginData{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         profile,
	})
}

// handleRegister creates an account from a multipart submission with an
// optional avatar part.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	in := service.RegisterInput{
		Username:   r.FormValue("username"),
		Email:      r.FormValue("email"),
		FirstName:  r.FormValue("firstName"),
		MiddleName: r.FormValue("middleName"),
		LastName:   r.FormValue("lastName"),
		Password:   r.FormValue("password"),
		Region:     r.FormValue("region"),
	}
	if in.Username == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "empty username/password")
		return
	}

	if file, hdr, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		url, err := s.avatars.Save(hdr.Filename, file)
		if err != nil {
			s.log.Warn("avatar save failed", zap.Error(err))
		} else {
			in.AvatarURL = url
		}
	}

	id, err := s.auth.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]string{"userId": id})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// handleRefresh exchanges a refresh token for a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	access, _, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"newAccessToken": access})
}

// handleVerify confirms the bearer token still maps to an account.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Verify(r.Context(), UserID(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"verified": true})
}

// handleLogout revokes the user's refresh tokens. The client clears its own
// stored credentials regardless of this call's outcome.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), UserID(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

type fcmTokenRequest struct {
	FCMToken string `json:"fcmToken"`
}

// handleUpdateFCMToken stores the device push token republished by clients.
func (s *Server) handleUpdateFCMToken(w http.ResponseWriter, r *http.Request) {
	var req fcmTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.FCMToken == "" {
		writeError(w, http.StatusBadRequest, "empty fcmToken")
		return
	}
	if err := s.auth.UpdateFCMToken(r.Context(), UserID(r.Context()), req.FCMToken); err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"updated": true})
}

// handleEditUser applies a multipart profile edit with an optional new avatar.
func (s *Server) handleEditUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	upd := model.ProfileUpdate{
		Email:      r.FormValue("email"),
		FirstName:  r.FormValue("firstName"),
		MiddleName: r.FormValue("middleName"),
		LastName:   r.FormValue("lastName"),
		Region:     r.FormValue("region"),
	}

	if file, hdr, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		url, err := s.avatars.Save(hdr.Filename, file)
		if err != nil {
			s.log.Warn("avatar save failed", zap.Error(err))
		} else {
			upd.AvatarURL = url
		}
	}

	profile, err := s.auth.EditProfile(r.Context(), UserID(r.Context()), upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, profile)
}
