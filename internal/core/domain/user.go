package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const UserIDPrefix = "user-"

type User struct {
	ID           string
	Name         string `validate:"required,max=100"`
	Username     string `validate:"required,max=100"`
	Email        string `validate:"required,email,max=255"`
	PasswordHash string `validate:"required"`
	SessionToken *string
	PhotoURL     *string
	PhoneNumber  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public projection of a User. It deliberately has no room for
// the password hash or the session token.
type Profile struct {
	Name        string
	Username    string
	Email       string
	CreatedAt   time.Time
	PhotoURL    *string
	PhoneNumber *string
}

func NewUserID() string {
	return UserIDPrefix + uuid.NewString()
}

func (u *User) Profile() Profile {
	return Profile{
		Name:        u.Name,
		Username:    u.Username,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt,
		PhotoURL:    u.PhotoURL,
		PhoneNumber: u.PhoneNumber,
	}
}

func (u *User) HasSession(token string) bool {
	return u.SessionToken != nil && *u.SessionToken != "" && *u.SessionToken == token
}

func (u *User) HasPhoto() bool {
	return u.PhotoURL != nil && strings.TrimSpace(*u.PhotoURL) != ""
}

// UserChanges is the set of fields a single Update call writes. Nil fields are
// left untouched; ClearSessionToken writes NULL into session_token.
type UserChanges struct {
	Name              *string
	Email             *string
	PhoneNumber       *string
	PasswordHash      *string
	SessionToken      *string
	ClearSessionToken bool
	PhotoURL          *string
}

func (c UserChanges) IsEmpty() bool {
	return len(c.ToMap()) == 0
}

func (c UserChanges) ToMap() map[string]interface{} {
	fields := map[string]interface{}{}

	if c.Name != nil {
		fields["name"] = *c.Name
	}
	if c.Email != nil {
		fields["email"] = *c.Email
	}
	if c.PhoneNumber != nil {
		fields["phone_number"] = *c.PhoneNumber
	}
	if c.PasswordHash != nil {
		fields["password_hash"] = *c.PasswordHash
	}
	if c.ClearSessionToken {
		fields["session_token"] = nil
	} else if c.SessionToken != nil {
		fields["session_token"] = *c.SessionToken
	}
	if c.PhotoURL != nil {
		fields["photo_url"] = *c.PhotoURL
	}

	return fields
}
