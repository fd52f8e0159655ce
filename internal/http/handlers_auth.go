package http

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"undertow/internal/log"
	"undertow/internal/storage"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	hash, err := s.authSvc.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.CreateUser(r.Context(), email, hash)
	if err != nil {
		// The email column is unique; a duplicate insert fails here
		s.logger.WarnContext(r.Context(), "Signup failed",
			log.FieldError, err.Error())
		writeError(w, http.StatusConflict, "account already exists")
		return
	}

	s.logger.InfoContext(r.Context(), "Account created",
		log.FieldUserID, user.ID)
	s.respondWithToken(w, r, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.store.FindUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.authSvc.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	s.logger.InfoContext(r.Context(), "Login succeeded",
		log.FieldUserID, user.ID)
	s.respondWithToken(w, r, user)
}

// handleVerify confirms the caller's token is still valid and returns the
// account it belongs to.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var resp struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	resp.ID = user.ID
	resp.Email = user.Email
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, user storage.User) {
	token, err := s.authSvc.IssueToken(user.ID, user.Email)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Token issue failed",
			log.FieldUserID, user.ID, log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var resp tokenResponse
	resp.Token = token
	resp.User.ID = user.ID
	resp.User.Email = user.Email
	writeJSON(w, http.StatusOK, resp)
}
