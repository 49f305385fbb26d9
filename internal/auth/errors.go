package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("User profile not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWrongRole          = errors.New("role mismatch")
	ErrInvalidRole        = errors.New("invalid role")
	ErrOAuthNotConfigured = errors.New("google sign-in is not configured")
	ErrOAuthExchange      = errors.New("google sign-in failed")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("insufficient permissions")
)

// RoleError is returned when an account signs in under a role it does not hold
type RoleError struct {
	Role string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("You do not have %s permissions", e.Role)
}

func (e *RoleError) Unwrap() error {
	return ErrWrongRole
}

// FriendlyMessage maps auth failures to text that can be shown to users
func FriendlyMessage(err error) string {
	var roleErr *RoleError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &roleErr):
		return roleErr.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password. Please try again."
	case errors.Is(err, ErrEmailInUse):
		return "An account with this email already exists."
	case errors.Is(err, ErrUserNotFound):
		return "User profile not found"
	case errors.Is(err, ErrInvalidRole):
		return "Please choose a valid role."
	case errors.Is(err, ErrOAuthNotConfigured):
		return "Google sign-in is currently unavailable."
	case errors.Is(err, ErrOAuthExchange):
		return "Failed to sign in with Google. Please try again."
	case errors.Is(err, ErrUnauthorized):
		return "Please sign in to continue."
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to access this resource."
	default:
		return "Authentication error. Please try again later."
	}
}
