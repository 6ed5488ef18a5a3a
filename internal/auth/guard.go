package auth

import (
	"context"

	"github.com/dukerupert/submitlink/internal/apperr"
)

// IsStaffRole reports whether r may use the staff surface.
func IsStaffRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleHR:
		return true
	}
	return false
}

// EnsureStaffAccess returns the caller's person id for audit attribution, or
// an UNAUTHORIZED/FORBIDDEN error.
func EnsureStaffAccess(ctx context.Context) (int64, error) {
	sc, ok := FromContext(ctx)
	if !ok || sc.PersonID == 0 {
		return 0, apperr.Unauthorized(apperr.CodeUnauthorized, "staff credentials required")
	}
	if !IsStaffRole(sc.Role) {
		return 0, apperr.ErrForbidden
	}
	return sc.PersonID, nil
}

// EnsureAdmin is EnsureStaffAccess restricted to ADMIN.
func EnsureAdmin(ctx context.Context) (int64, error) {
	id, err := EnsureStaffAccess(ctx)
	if err != nil {
		return 0, err
	}
	if !IsAdmin(ctx) {
		return 0, apperr.Forbidden("admin role required")
	}
	return id, nil
}
