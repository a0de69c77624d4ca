package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abakus-kids/academy/internal/rbac"
)

func TestCheckerDefaults(t *testing.T) {
	c := rbac.NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{rbac.RoleLearner, "attempt:start", true},
		{rbac.RoleLearner, "quiz:manage", false},
		{rbac.RoleInstructor, "enrollment:review", true},
		{rbac.RoleInstructor, "attempt:start", false},
		{rbac.RoleAdmin, "anything:at-all", true},
		{"", "quiz:view", false},
		{"ghost", "quiz:view", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
	if !c.Any(rbac.RoleLearner, "quiz:manage", "quiz:view") {
		t.Error("Any should accept when one permission matches")
	}
}

func TestRequire(t *testing.T) {
	h := rbac.Require("quiz:manage")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for role, want := range map[string]int{
		"":                  http.StatusForbidden,
		rbac.RoleLearner:    http.StatusForbidden,
		rbac.RoleInstructor: http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(rbac.WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %q: status %d, want %d", role, rec.Code, want)
		}
	}
}

func TestSubjectContext(t *testing.T) {
	ctx := rbac.WithSubject(context.Background(), "kid")
	if rbac.SubjectFromContext(ctx) != "kid" || rbac.RoleFromContext(ctx) != "" {
		t.Fatal("subject and role must be independent")
	}
}
