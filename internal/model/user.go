package model

import "time"

// Roles known to the forum.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User is the forum's read-only view of an account from the auth provider.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Username  string    `json:"username" bson:"username"`
	Email     string    `json:"email" bson:"email"`
	AvatarURL string    `json:"avatar_url" bson:"avatar_url"`
	Role      string    `json:"role" bson:"role"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Actor is the verified user performing an operation.
type Actor struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

// ActorFromUser builds an Actor from a stored user.
func ActorFromUser(u *User) *Actor {
	if u == nil {
		return nil
	}
	return &Actor{
		UserID: u.ID,
		Name:   u.Username,
		Email:  u.Email,
		Role:   u.Role,
	}
}
