package auth

import "context"

type contextKey struct{}

// Role is a staff role carried by a resolved identity.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleHR      Role = "HR"
)

// StaffContext is the caller identity attached by the staff middleware.
type StaffContext struct {
	PersonID int64
	Role     Role
}

func WithStaff(ctx context.Context, sc StaffContext) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

func FromContext(ctx context.Context) (StaffContext, bool) {
	sc, ok := ctx.Value(contextKey{}).(StaffContext)
	return sc, ok
}

func PersonID(ctx context.Context) int64 {
	sc, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return sc.PersonID
}

func IsAdmin(ctx context.Context) bool {
	sc, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return sc.Role == RoleAdmin
}
