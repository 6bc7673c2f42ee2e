package domain

import "errors"

var (
	// service errors, surfaced to callers
	ErrDuplicateCredential     = errors.New("username or email already exists")
	ErrNotFound                = errors.New("not found")
	ErrInvalidCredential       = errors.New("credential does not match")
	ErrInvalidToken            = errors.New("invalid token")
	ErrEmailTaken              = errors.New("email already used")
	ErrInvalidAsset            = errors.New("invalid image file")
	ErrAssetDeleteFailed       = errors.New("could not delete previous photo")
	ErrCollaboratorUnavailable = errors.New("internal server error")

	// repository errors
	ErrUniqueViolation = errors.New("unique constraint violation")
)
