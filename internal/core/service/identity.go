package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"identityapp/internal/core/domain"
	"identityapp/internal/core/model/request"
	"identityapp/internal/core/model/response"
	"identityapp/internal/core/port"
	"identityapp/internal/core/telemetry"
)

const (
	MaxPhotoSize    int64 = 1 << 20
	ProfileCacheTTL       = time.Minute

	serviceName = "identity"
)

type IdentityService struct {
	repo      port.UserRepository
	hasher    port.PasswordHasher
	tokens    port.TokenIssuer
	blobs     port.BlobStore
	cache     port.CacheRepository
	telemetry port.Telemetry
}

// NewIdentityService wires the service. cache and probe may be nil.
func NewIdentityService(
	repo port.UserRepository,
	hasher port.PasswordHasher,
	tokens port.TokenIssuer,
	blobs port.BlobStore,
	cache port.CacheRepository,
	probe port.Telemetry,
) *IdentityService {
	if probe == nil {
		probe = telemetry.NewNoOpProbe()
	}

	return &IdentityService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		blobs:     blobs,
		cache:     cache,
		telemetry: probe,
	}
}

func (s *IdentityService) Register(ctx context.Context, req request.RegisterRequest) (user domain.User, err error) {
	ctx, done := s.trace(ctx, "register", nil)
	defer func() { done(err) }()

	id := domain.NewUserID()

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return domain.User{}, s.unavailable(ctx, "Identity#Register", "hash", err)
	}

	_, err = s.repo.FindByUsernameOrEmail(ctx, req.Username, req.Email)
	switch {
	case err == nil:
		return domain.User{}, domain.ErrDuplicateCredential
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, s.unavailable(ctx, "Identity#Register", "find_by_username_or_email", err)
	}

	now := time.Now().UTC()

	user, err = s.repo.Create(ctx, domain.User{
		ID:           id,
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, domain.ErrUniqueViolation) {
		return domain.User{}, domain.ErrDuplicateCredential
	}
	if err != nil {
		return domain.User{}, s.unavailable(ctx, "Identity#Register", "create", err)
	}

	s.telemetry.RecordBusinessEvent(ctx, "user.registered", "user", user.ID, nil)

	user.PasswordHash = ""
	user.SessionToken = nil

	return user, nil
}

func (s *IdentityService) Login(ctx context.Context, req request.LoginRequest) (result response.LoginResult, err error) {
	ctx, done := s.trace(ctx, "login", nil)
	defer func() { done(err) }()

	user, err := s.repo.FindByUsernameOrEmail(ctx, req.Username, req.Username)
	if errors.Is(err, domain.ErrNotFound) {
		return response.LoginResult{}, domain.ErrNotFound
	}
	if err != nil {
		return response.LoginResult{}, s.unavailable(ctx, "Identity#Login", "find_by_username_or_email", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return response.LoginResult{}, domain.ErrInvalidCredential
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return response.LoginResult{}, s.unavailable(ctx, "Identity#Login", "issue_token", err)
	}

	if err = s.repo.Update(ctx, user.ID, domain.UserChanges{SessionToken: &token}); err != nil {
		return response.LoginResult{}, s.unavailable(ctx, "Identity#Login", "update", err)
	}

	s.telemetry.RecordBusinessEvent(ctx, "user.logged_in", "user", user.ID, nil)

	return response.LoginResult{
		UserID: user.ID,
		Name:   user.Name,
		Token:  token,
	}, nil
}

// Logout clears the stored session. Accounts that no longer exist are treated
// as already logged out.
func (s *IdentityService) Logout(ctx context.Context, bearerToken string) (err error) {
	ctx, done := s.trace(ctx, "logout", nil)
	defer func() { done(err) }()

	userID, err := s.tokens.Verify(bearerToken)
	if err != nil {
		return domain.ErrInvalidToken
	}

	err = s.repo.Update(ctx, userID, domain.UserChanges{ClearSessionToken: true})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return s.unavailable(ctx, "Identity#Logout", "update", err)
	}

	s.telemetry.RecordBusinessEvent(ctx, "user.logged_out", "user", userID, nil)

	return nil
}

// Authenticate accepts a bearer token only while it is the session recorded
// on the account.
func (s *IdentityService) Authenticate(ctx context.Context, bearerToken string) (userID string, err error) {
	ctx, done := s.trace(ctx, "authenticate", nil)
	defer func() { done(err) }()

	userID, err = s.tokens.Verify(bearerToken)
	if err != nil {
		return "", domain.ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrInvalidToken
	}
	if err != nil {
		return "", s.unavailable(ctx, "Identity#Authenticate", "find_by_id", err)
	}

	if !user.HasSession(bearerToken) {
		return "", domain.ErrInvalidToken
	}

	return user.ID, nil
}

func (s *IdentityService) GetProfile(ctx context.Context, id string) (profile domain.Profile, err error) {
	ctx, done := s.trace(ctx, "get_profile", map[string]interface{}{"user.id": id})
	defer func() { done(err) }()

	if cached, ok := s.cachedProfile(ctx, id); ok {
		return cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Profile{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, s.unavailable(ctx, "Identity#GetProfile", "find_by_id", err)
	}

	profile = user.Profile()
	s.storeProfile(ctx, id, profile)

	return profile, nil
}

func (s *IdentityService) UpdateProfile(ctx context.Context, id string, req request.UpdateProfileRequest) (err error) {
	ctx, done := s.trace(ctx, "update_profile", map[string]interface{}{"user.id": id})
	defer func() { done(err) }()

	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return s.unavailable(ctx, "Identity#UpdateProfile", "find_by_id", err)
	}

	changes := domain.UserChanges{
		Name:        &req.Name,
		PhoneNumber: req.PhoneNumber,
	}

	if req.Email != user.Email {
		holders, err := s.repo.FindByEmail(ctx, req.Email)
		if err != nil {
			return s.unavailable(ctx, "Identity#UpdateProfile", "find_by_email", err)
		}

		for _, holder := range holders {
			if holder.ID != user.ID {
				return domain.ErrEmailTaken
			}
		}

		changes.Email = &req.Email
	}

	// An empty password leaves the current one in place.
	if req.Password != nil && *req.Password != "" {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return s.unavailable(ctx, "Identity#UpdateProfile", "hash", err)
		}
		changes.PasswordHash = &hash
	}

	err = s.repo.Update(ctx, id, changes)
	switch {
	case errors.Is(err, domain.ErrUniqueViolation):
		return domain.ErrEmailTaken
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotFound
	case err != nil:
		return s.unavailable(ctx, "Identity#UpdateProfile", "update", err)
	}

	s.evictProfile(ctx, id)
	s.telemetry.RecordBusinessEvent(ctx, "user.profile_updated", "user", id, map[string]interface{}{
		"email_changed":    changes.Email != nil,
		"password_changed": changes.PasswordHash != nil,
	})

	return nil
}

// ReplacePhoto uploads the new object and records it before the previous one
// is deleted, so a failure at any step leaves the account with a live photo.
func (s *IdentityService) ReplacePhoto(ctx context.Context, id string, upload request.PhotoUpload) (photoURL string, err error) {
	ctx, done := s.trace(ctx, "replace_photo", map[string]interface{}{
		"user.id":      id,
		"content_type": upload.ContentType,
		"size":         upload.Size,
	})
	defer func() { done(err) }()

	body, err := readPhoto(upload)
	if err != nil {
		return "", err
	}

	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", s.unavailable(ctx, "Identity#ReplacePhoto", "find_by_id", err)
	}

	name := photoObjectName(upload.ContentType)

	photoURL, err = s.blobs.Upload(ctx, name, upload.ContentType, body)
	if err != nil {
		return "", s.unavailable(ctx, "Identity#ReplacePhoto", "upload", err)
	}

	if err = s.repo.Update(ctx, id, domain.UserChanges{PhotoURL: &photoURL}); err != nil {
		if delErr := s.blobs.Delete(ctx, name); delErr != nil {
			slog.ErrorContext(ctx, "Identity#ReplacePhoto", "step", "rollback_upload", "error", delErr, "object", name)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", s.unavailable(ctx, "Identity#ReplacePhoto", "update", err)
	}

	s.evictProfile(ctx, id)

	if user.HasPhoto() {
		previous := s.blobs.NameFromURL(*user.PhotoURL)

		err = s.blobs.Delete(ctx, previous)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "Identity#ReplacePhoto", "step", "delete_previous", "error", err, "orphan", previous)
			return "", domain.ErrAssetDeleteFailed
		}
		err = nil
	}

	s.telemetry.RecordBusinessEvent(ctx, "user.photo_replaced", "user", id, map[string]interface{}{
		"object": name,
	})

	return photoURL, nil
}

func readPhoto(upload request.PhotoUpload) ([]byte, error) {
	if !strings.HasPrefix(upload.ContentType, "image/") || upload.Size > MaxPhotoSize || upload.Content == nil {
		return nil, domain.ErrInvalidAsset
	}

	body, err := io.ReadAll(io.LimitReader(upload.Content, MaxPhotoSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAsset, err)
	}

	if int64(len(body)) > MaxPhotoSize || len(body) == 0 {
		return nil, domain.ErrInvalidAsset
	}

	return body, nil
}

// photoObjectName builds "<uuid>.<subtype>", e.g. "<uuid>.jpeg" for image/jpeg.
func photoObjectName(contentType string) string {
	subtype := strings.TrimPrefix(contentType, "image/")
	if i := strings.IndexAny(subtype, ";+ "); i >= 0 {
		subtype = subtype[:i]
	}

	return uuid.NewString() + "." + subtype
}

func (s *IdentityService) trace(ctx context.Context, operation string, attrs map[string]interface{}) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.telemetry.StartServiceSpan(ctx, serviceName, operation, attrs)

	return ctx, func(err error) {
		s.telemetry.RecordServiceOperation(ctx, serviceName, operation, time.Since(start), err)
		span.End()
	}
}

// unavailable logs a collaborator failure and hides it from the caller.
func (s *IdentityService) unavailable(ctx context.Context, operation, step string, err error) error {
	s.telemetry.RecordError(ctx, operation, err, map[string]interface{}{"step": step})

	return domain.ErrCollaboratorUnavailable
}

func profileKey(id string) string {
	return "profile:" + id
}

func (s *IdentityService) cachedProfile(ctx context.Context, id string) (domain.Profile, bool) {
	if s.cache == nil {
		return domain.Profile{}, false
	}

	data, err := s.cache.Get(ctx, profileKey(id))
	if err != nil || data == nil {
		return domain.Profile{}, false
	}

	var profile domain.Profile
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&profile); err != nil {
		slog.WarnContext(ctx, "Identity#GetProfile", "step", "decode_cache", "error", err)
		return domain.Profile{}, false
	}

	return profile, true
}

func (s *IdentityService) storeProfile(ctx context.Context, id string, profile domain.Profile) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, profileKey(id), data, ProfileCacheTTL); err != nil {
		slog.WarnContext(ctx, "Identity#GetProfile", "step", "cache_set", "error", err)
	}
}

func (s *IdentityService) evictProfile(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Delete(ctx, profileKey(id)); err != nil {
		slog.WarnContext(ctx, "Identity", "step", "cache_delete", "error", err, "user_id", id)
	}
}
