package models

import "time"

// User roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type UserResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Verified   bool      `json:"verified"`
	Locked     bool      `json:"locked"`
	LockReason string    `json:"lock_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SetUserLockRequest locks or unlocks an account. Locked is a pointer so
// an explicit false binds.
type SetUserLockRequest struct {
	Locked *bool  `json:"locked" binding:"required"`
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type UserListResponse struct {
	Users      []UserResponse `json:"users"`
	Pagination Pagination     `json:"pagination"`
}

// ProfileResponse is the user plus their mirrored loan list.
type ProfileResponse struct {
	User          UserResponse      `json:"user"`
	BorrowedBooks []BorrowedSummary `json:"borrowed_books"`
}
