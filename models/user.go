package models

// UserRole mirrors the role claim issued by the auth collaborator.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePlayer UserRole = "player"
)

// User is the minimal record the core keeps for display purposes. Identity
// and credentials live with the external auth service; the core only trusts
// the (id, role) pair carried in its tokens.
type User struct {
	ID       int      `json:"id" db:"id"`
	Nickname string   `json:"nickname" db:"nickname"`
	Role     UserRole `json:"role" db:"role"`
}
