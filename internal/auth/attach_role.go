package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/abakus-kids/academy/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the one stored for the
// subject, so demotions take effect before tokens expire. Subjects without a
// users row (the configured admin) keep their token role.
func AttachRoleFromDB(users *Users) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role, err := users.RoleOf(ctx, rbac.SubjectFromContext(ctx))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, sql.ErrNoRows):
				next.ServeHTTP(w, r)
			default:
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
