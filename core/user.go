package core

import (
	"context"
	"time"
)

type (
	User struct {
		ID           string    `json:"id"`
		Subject      string    `json:"subject"`
		Login        string    `json:"login"`
		Email        string    `json:"email"`
		AvatarURL    string    `json:"avatarUrl"`
		Name         string    `json:"name"`
		PasswordHash []byte    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// UserStore persists password accounts. OAuth users are not stored; their
	// identity lives in the signed session token.
	UserStore interface {
		CreateUser(ctx context.Context, user *User) error
		FindUserByEmail(ctx context.Context, email string) (*User, error)
	}
)
