package httpapp

import (
	"errors"
	"net/http"

	"github.com/alphabot-ai/quill/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister godoc
//
//	@Summary		Register a user
//	@Description	Create an account and receive a bearer token. Email is stored lowercased; username and email must be unique.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			user	body		auth.RegisterInput	true	"New user"
//	@Success		201		{object}	auth.Session
//	@Failure		400		{object}	map[string]string	"Registration failed"
//	@Router			/auth/register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := readJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		s.log.Warn(r.Context(), "register: bad body", "err", err)
		writeError(w, http.StatusBadRequest, "Registration failed")
		return
	}
	sess, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.log.Warn(r.Context(), "register failed", "err", err)
		writeError(w, http.StatusBadRequest, "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// handleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchange email and password for a bearer token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			credentials	body		loginRequest	true	"Credentials"
//	@Success		200			{object}	auth.Session
//	@Failure		400			{object}	map[string]string	"Login failed"
//	@Failure		401			{object}	map[string]string	"Invalid credentials"
//	@Router			/auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		s.log.Warn(r.Context(), "login: bad body", "err", err)
		writeError(w, http.StatusBadRequest, "Login failed")
		return
	}
	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "login failed", "err", err)
		writeError(w, http.StatusBadRequest, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
