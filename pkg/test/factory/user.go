package factory

import (
	"time"

	fab "github.com/Goldziher/fabricator"
	"golang.org/x/crypto/bcrypt"

	"identityapp/internal/core/domain"
)

const DefaultPassword = "12345678"

// UserSeed holds the fields fabricator fills in; override them by name.
type UserSeed struct {
	Name     string
	Username string
	Email    string
	Password string
}

// NewUser builds an unsaved account with a fresh id and a bcrypt hash of
// Password (DefaultPassword unless overridden).
func NewUser(customData ...map[string]any) domain.User {
	hasPassword := false

	for _, data := range customData {
		if _, exists := data["Password"]; exists {
			hasPassword = true
			break
		}
	}

	if !hasPassword {
		customData = append(customData, map[string]any{"Password": DefaultPassword})
	}

	seed := fab.New(UserSeed{}).Build(customData...)

	encryptedPassword, _ := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.MinCost)
	now := time.Now().UTC()

	return domain.User{
		ID:           domain.NewUserID(),
		Name:         seed.Name,
		Username:     seed.Username,
		Email:        seed.Email,
		PasswordHash: string(encryptedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
