package port

import (
	"context"

	"identityapp/internal/core/domain"
	"identityapp/internal/core/model/request"
	"identityapp/internal/core/model/response"
)

type UserRepository interface {
	FindByUsernameOrEmail(ctx context.Context, username string, email string) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) ([]domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, id string, changes domain.UserChanges) error
}

type IdentityService interface {
	Register(ctx context.Context, req request.RegisterRequest) (domain.User, error)
	Login(ctx context.Context, req request.LoginRequest) (response.LoginResult, error)
	Logout(ctx context.Context, bearerToken string) error
	Authenticate(ctx context.Context, bearerToken string) (string, error)
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, req request.UpdateProfileRequest) error
	ReplacePhoto(ctx context.Context, id string, upload request.PhotoUpload) (string, error)
}
