package models

import "time"

// Role values stored on User.Role.
const (
	RoleAdmin  = "ADMIN"
	RoleEditor = "EDITOR"
)

// User is an admin console account. PasswordHash is a bcrypt hash and is
// never serialized to JSON.
type User struct {
	ID           string     `bson:"_id" json:"id"`
	Username     string     `bson:"username" json:"username"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"passwordHash" json:"-"`
	Role         string     `bson:"role" json:"role"`
	IsActive     bool       `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt" json:"updatedAt"`
	LastLoginAt  *time.Time `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
}
