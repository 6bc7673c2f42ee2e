package port

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) bool
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}
