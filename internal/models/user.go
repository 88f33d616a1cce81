package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleHOD        UserRole = "HOD"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// Actor identifies the caller of a core operation. It is supplied by the
// identity provider on every call rather than reconstructed per screen.
type Actor struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	InstructorID string   `json:"instructor_id,omitempty"`
	DepartmentID string   `json:"department_id,omitempty"`
}

// InstructorRef returns the instructor identity used for slot ownership.
func (a Actor) InstructorRef() string {
	if a.InstructorID != "" {
		return a.InstructorID
	}
	return a.UserID
}

// IsAdmin reports whether the actor resolves edit requests.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	Email        string   `json:"email"`
	FullName     string   `json:"full_name"`
	InstructorID string   `json:"instructor_id,omitempty"`
	DepartmentID string   `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the caller identity passed to services.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role, InstructorID: c.InstructorID, DepartmentID: c.DepartmentID}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
