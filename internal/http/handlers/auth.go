package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// Login issues a session credential. The credential check is a demo
// placeholder, not an identity system: token issuance, hashing, and account
// storage all live with the real backend.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "email and password required")
		return
	}
	if !strings.Contains(req.Email, "@") || len(req.Password) < 4 {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	token := uuid.NewString()
	a.Sessions.Set(token)
	a.Sessions.WriteCookie(w, token)
	a.Logger.Info().Str("email", req.Email).Msg("session issued")
	a.json(w, http.StatusOK, loginResponse{Token: token, Email: req.Email})
}

// Logout clears the session. It succeeds whether or not a credential is
// present.
func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.Clear()
	a.Sessions.ExpireCookie(w)
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}
