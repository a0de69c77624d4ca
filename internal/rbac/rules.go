package rbac

const (
	RoleLearner    = "learner"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// Default policy. A trailing '*' matches any suffix.
var RolePermissions = map[string][]string{
	RoleLearner: {
		"quiz:view",
		"attempt:start",
		"attempt:take",
		"attempt:answer",
		"attempt:submit",
		"attempt:view-own",
		"enrollment:request",
	},
	RoleInstructor: {
		"quiz:view",
		"quiz:manage",
		"quiz:export",
		"catalog:manage",
		"enrollment:*",
		"attempt:view-own",
	},
	RoleAdmin: {
		"*", // everything
	},
}

// ValidRole reports whether role has an entry in the default policy.
func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
