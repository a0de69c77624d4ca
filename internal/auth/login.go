package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/rbac"
)

// Admin is the bootstrap account from configuration. Hash is a bcrypt hash;
// an empty hash disables the account.
type Admin struct {
	Username string
	Hash     string
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(a *AuthService, users *Users, admin Admin, log *logger.Logger) http.HandlerFunc {
	type out struct {
		AccessToken string `json:"access_token"`
		Subject     string `json:"sub"`
		Role        string `json:"role"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		var sub, role string
		if admin.Hash != "" && req.Username == admin.Username &&
			bcrypt.CompareHashAndPassword([]byte(admin.Hash), []byte(req.Password)) == nil {
			sub, role = "admin:"+admin.Username, rbac.RoleAdmin
		} else {
			usr, err := users.Authenticate(r.Context(), req.Username, req.Password)
			if errors.Is(err, ErrInvalidCredentials) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			if err != nil {
				log.Error("login lookup failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			sub, role = usr.ID, usr.Role
		}

		tok, err := a.IssueJWT(sub, role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out{AccessToken: tok, Subject: sub, Role: role})
	}
}
