package models

// UserRole represents the coarse role assigned to a locally managed user
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// User represents a locally managed account used for password login.
// PasswordHash is a bcrypt hash and never leaves the repository layer.
type User struct {
	ID           string   `json:"id" db:"id"`
	Email        string   `json:"email" db:"email"`
	PasswordHash string   `json:"-" db:"password_hash"`
	Role         UserRole `json:"role" db:"role"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// TokenPayload is the subset of a user embedded in issued tokens and
// returned to clients from the login and refresh endpoints.
type TokenPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Payload returns the token payload for the user
func (u *User) Payload() TokenPayload {
	return TokenPayload{
		ID:    u.ID,
		Email: u.Email,
		Role:  string(u.Role),
	}
}
