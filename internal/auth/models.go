package auth

import (
	"time"
)

// Roles
const (
	RoleClient    = "client"
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
)

// Sign-in providers
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// ValidRole reports whether role is one of the portal roles
func ValidRole(role string) bool {
	switch role {
	case RoleClient, RoleAdmin, RoleDeveloper:
		return true
	}
	return false
}

// User is a profile in the users collection
type User struct {
	UID          string    `bson:"_id" json:"uid"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	Phone        string    `bson:"phone" json:"phone"`
	Role         string    `bson:"role" json:"role"`
	Avatar       string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	Provider     string    `bson:"provider" json:"provider"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	LastLogin    time.Time `bson:"lastLogin" json:"lastLogin"`
}

// Claims is the identity carried by a session token
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// Session is returned after a successful sign-in
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
