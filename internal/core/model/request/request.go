package request

import "io"

type RegisterRequest struct {
	Name     string `json:"name,omitempty" validate:"required,max=100"`
	Username string `json:"username,omitempty" validate:"required,max=100"`
	Email    string `json:"email,omitempty" validate:"required,email,max=255"`
	Password string `json:"password,omitempty" validate:"required,maxbytes=72"`
}

// LoginRequest accepts either the username or the email in Username.
type LoginRequest struct {
	Username string `json:"username,omitempty" validate:"required,max=255"`
	Password string `json:"password,omitempty" validate:"required,maxbytes=72"`
}

type UpdateProfileRequest struct {
	Name        string  `json:"name,omitempty" validate:"required,max=100"`
	Email       string  `json:"email,omitempty" validate:"required,email,max=255"`
	Password    *string `json:"password,omitempty" validate:"omitempty,maxbytes=72"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,max=32"`
}

// PhotoUpload describes an uploaded image. Content is owned by the caller,
// which must close the underlying file once the call returns.
type PhotoUpload struct {
	Content     io.Reader
	ContentType string
	Size        int64
}
