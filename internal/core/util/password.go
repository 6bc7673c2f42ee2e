package util

import "golang.org/x/crypto/bcrypt"

const (
	PasswordCost = 10

	// MaxPasswordBytes is the bcrypt input limit; longer input is cut to it.
	MaxPasswordBytes = 72
)

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: PasswordCost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	return GenerateEncrypt(password, h.cost)
}

// Verify reports whether password matches hash. Malformed hashes never match.
func (h *BcryptHasher) Verify(password string, hash string) bool {
	return ComparePassword(password, hash) == nil
}

func GenerateEncrypt(password string, cost int) (string, error) {
	encrypted, err := bcrypt.GenerateFromPassword(truncate(password), cost)

	if err != nil {
		return "", err
	}

	return string(encrypted), nil
}

func ComparePassword(password, encrypted string) error {
	return bcrypt.CompareHashAndPassword([]byte(encrypted), truncate(password))
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > MaxPasswordBytes {
		return b[:MaxPasswordBytes]
	}

	return b
}
