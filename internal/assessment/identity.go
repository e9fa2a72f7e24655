package assessment

import "fmt"

// Role is the verified role of a caller.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole converts a header or token claim into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTeacher, RoleStudent:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q: %w", s, ErrUnauthorized)
	}
}

// Identity is a caller already authenticated upstream.
type Identity struct {
	UserID string
	Role   Role
}

// Teacher returns a teacher identity.
func Teacher(userID string) Identity {
	return Identity{UserID: userID, Role: RoleTeacher}
}

// Student returns a student identity.
func Student(userID string) Identity {
	return Identity{UserID: userID, Role: RoleStudent}
}

// RequireTeacher fails with ErrUnauthorized unless id is a teacher.
func (id Identity) RequireTeacher() error {
	if id.UserID == "" || id.Role != RoleTeacher {
		return fmt.Errorf("teacher role required: %w", ErrUnauthorized)
	}
	return nil
}

// RequireStudent fails with ErrUnauthorized unless id is a student.
func (id Identity) RequireStudent() error {
	if id.UserID == "" || id.Role != RoleStudent {
		return fmt.Errorf("student role required: %w", ErrUnauthorized)
	}
	return nil
}
