package rbac

// Role names. Keep these stable; they are part of auth contracts and are
// persisted on user rows.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}
