package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"identityapp/internal/adapter/database/memory"
	"identityapp/internal/adapter/database/sqlite/repository"
	"identityapp/internal/core/domain"
	"identityapp/internal/core/model/request"
	"identityapp/internal/core/port"
	"identityapp/internal/core/service"
	"identityapp/internal/core/util"
	. "identityapp/pkg/test"
)

type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	calls     int
	uploadErr error
	deleteErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Upload(ctx context.Context, name string, contentType string, body []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.uploadErr != nil {
		return "", f.uploadErr
	}

	f.objects[name] = body
	return "https://blobs.test/photos/" + name, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.deleteErr != nil {
		return f.deleteErr
	}

	if _, ok := f.objects[name]; !ok {
		return domain.ErrNotFound
	}

	delete(f.objects, name)
	return nil
}

func (f *fakeBlobStore) NameFromURL(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

func (f *fakeBlobStore) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[name]
	return ok
}

type IdentityServiceTestSuite struct {
	suite.Suite
	service *service.IdentityService
	repo    port.UserRepository
	blobs   *fakeBlobStore
	tokens  port.TokenIssuer
}

func (s *IdentityServiceTestSuite) SetupTest() {
	db := InitTestDB()

	tokens, err := util.NewJWTIssuer("test-secret")
	require.NoError(s.T(), err)

	s.repo = repository.NewUserRepository(db, nil)
	s.blobs = newFakeBlobStore()
	s.tokens = tokens
	s.service = service.NewIdentityService(s.repo, util.NewBcryptHasher(), tokens, s.blobs, memory.NewMemoryRepository(nil), nil)
}

func TestIdentityServiceTestSuite(t *testing.T) {
	RegisterTestingT(t)
	suite.Run(t, new(IdentityServiceTestSuite))
}

func (s *IdentityServiceTestSuite) register(name, username, email, password string) domain.User {
	user, err := s.service.Register(context.Background(), request.RegisterRequest{
		Name:     name,
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(s.T(), err)

	return user
}

func (s *IdentityServiceTestSuite) jpeg(size int) request.PhotoUpload {
	return request.PhotoUpload{
		Content:     bytes.NewReader(bytes.Repeat([]byte{0xff}, size)),
		ContentType: "image/jpeg",
		Size:        int64(size),
	}
}

func (s *IdentityServiceTestSuite) TestRegister_Success() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")

	Expect(user.ID).To(HavePrefix(domain.UserIDPrefix))
	assert.Equal(s.T(), "ada", user.Username)
	assert.Empty(s.T(), user.PasswordHash)
	assert.Nil(s.T(), user.SessionToken)

	stored, err := s.repo.FindByID(context.Background(), user.ID)
	assert.NoError(s.T(), err)
	assert.NotEqual(s.T(), "pw123", stored.PasswordHash)
	assert.Nil(s.T(), stored.PhotoURL)
}

func (s *IdentityServiceTestSuite) TestRegister_DuplicateUsername() {
	s.register("Ada", "ada", "ada@x.io", "pw123")

	_, err := s.service.Register(context.Background(), request.RegisterRequest{
		Name: "Ada2", Username: "ada", Email: "other@x.io", Password: "pw456",
	})

	assert.ErrorIs(s.T(), err, domain.ErrDuplicateCredential)
}

func (s *IdentityServiceTestSuite) TestRegister_DuplicateEmail() {
	s.register("Ada", "ada", "ada@x.io", "pw123")

	_, err := s.service.Register(context.Background(), request.RegisterRequest{
		Name: "Ada2", Username: "ada2", Email: "ada@x.io", Password: "pw456",
	})

	assert.ErrorIs(s.T(), err, domain.ErrDuplicateCredential)

	users, err := s.repo.FindByEmail(context.Background(), "ada@x.io")
	assert.NoError(s.T(), err)
	assert.Len(s.T(), users, 1)
}

func (s *IdentityServiceTestSuite) TestLogin_WrongPassword() {
	s.register("Ada", "ada", "ada@x.io", "pw123")

	_, err := s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "wrong"})

	assert.ErrorIs(s.T(), err, domain.ErrInvalidCredential)
}

func (s *IdentityServiceTestSuite) TestLogin_UnknownUser() {
	_, err := s.service.Login(context.Background(), request.LoginRequest{Username: "nobody", Password: "pw123"})

	assert.ErrorIs(s.T(), err, domain.ErrNotFound)
}

func (s *IdentityServiceTestSuite) TestLogin_Success() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")

	result, err := s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "pw123"})

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), user.ID, result.UserID)
	assert.Equal(s.T(), "Ada", result.Name)
	assert.NotEmpty(s.T(), result.Token)

	stored, _ := s.repo.FindByID(context.Background(), user.ID)
	Expect(stored.SessionToken).NotTo(BeNil())
	Expect(*stored.SessionToken).To(Equal(result.Token))

	userID, err := s.tokens.Verify(result.Token)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), user.ID, userID)
}

func (s *IdentityServiceTestSuite) TestLogin_ByEmail() {
	s.register("Ada", "ada", "ada@x.io", "pw123")

	result, err := s.service.Login(context.Background(), request.LoginRequest{Username: "ada@x.io", Password: "pw123"})

	assert.NoError(s.T(), err)
	assert.NotEmpty(s.T(), result.Token)
}

func (s *IdentityServiceTestSuite) TestLogout_ClearsSession() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	result, _ := s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "pw123"})

	err := s.service.Logout(context.Background(), result.Token)
	assert.NoError(s.T(), err)

	stored, _ := s.repo.FindByID(context.Background(), user.ID)
	assert.Nil(s.T(), stored.SessionToken)

	_, err = s.tokens.Verify(result.Token)
	assert.NoError(s.T(), err, "signature still verifies structurally")

	_, err = s.service.Authenticate(context.Background(), result.Token)
	assert.ErrorIs(s.T(), err, domain.ErrInvalidToken)
}

func (s *IdentityServiceTestSuite) TestLogout_Idempotent() {
	s.register("Ada", "ada", "ada@x.io", "pw123")
	result, _ := s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "pw123"})

	assert.NoError(s.T(), s.service.Logout(context.Background(), result.Token))
	assert.NoError(s.T(), s.service.Logout(context.Background(), result.Token))

	orphan, _ := s.tokens.Issue("user-missing")
	assert.NoError(s.T(), s.service.Logout(context.Background(), orphan))
}

func (s *IdentityServiceTestSuite) TestLogout_InvalidToken() {
	err := s.service.Logout(context.Background(), "garbage")

	assert.ErrorIs(s.T(), err, domain.ErrInvalidToken)
}

func (s *IdentityServiceTestSuite) TestAuthenticate_ReplacedSession() {
	s.register("Ada", "ada", "ada@x.io", "pw123")
	first, _ := s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "pw123"})
	second, _ := s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "pw123"})

	userID, err := s.service.Authenticate(context.Background(), second.Token)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), second.UserID, userID)

	_, err = s.service.Authenticate(context.Background(), first.Token)
	assert.ErrorIs(s.T(), err, domain.ErrInvalidToken)
}

func (s *IdentityServiceTestSuite) TestGetProfile() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	_, _ = s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "pw123"})

	profile, err := s.service.GetProfile(context.Background(), user.ID)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), "Ada", profile.Name)
	assert.Equal(s.T(), "ada", profile.Username)
	assert.Equal(s.T(), "ada@x.io", profile.Email)
	assert.False(s.T(), profile.CreatedAt.IsZero())

	_, err = s.service.GetProfile(context.Background(), "user-missing")
	assert.ErrorIs(s.T(), err, domain.ErrNotFound)
}

func (s *IdentityServiceTestSuite) TestUpdateProfile_SameEmail() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	phone := "+44 20 7946 0000"

	err := s.service.UpdateProfile(context.Background(), user.ID, request.UpdateProfileRequest{
		Name: "Ada Lovelace", Email: "ada@x.io", PhoneNumber: &phone,
	})
	assert.NoError(s.T(), err)

	profile, _ := s.service.GetProfile(context.Background(), user.ID)
	assert.Equal(s.T(), "Ada Lovelace", profile.Name)
	Expect(*profile.PhoneNumber).To(Equal(phone))
}

func (s *IdentityServiceTestSuite) TestUpdateProfile_EmailTaken() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	s.register("Bob", "bob", "bob@x.io", "pw123")

	err := s.service.UpdateProfile(context.Background(), user.ID, request.UpdateProfileRequest{
		Name: "Changed", Email: "bob@x.io",
	})
	assert.ErrorIs(s.T(), err, domain.ErrEmailTaken)

	stored, _ := s.repo.FindByID(context.Background(), user.ID)
	assert.Equal(s.T(), "Ada", stored.Name)
	assert.Equal(s.T(), "ada@x.io", stored.Email)
}

func (s *IdentityServiceTestSuite) TestUpdateProfile_NewEmailAndPassword() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	password := "new-secret"

	err := s.service.UpdateProfile(context.Background(), user.ID, request.UpdateProfileRequest{
		Name: "Ada", Email: "lovelace@x.io", Password: &password,
	})
	assert.NoError(s.T(), err)

	_, err = s.service.Login(context.Background(), request.LoginRequest{Username: "lovelace@x.io", Password: password})
	assert.NoError(s.T(), err)

	_, err = s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "pw123"})
	assert.ErrorIs(s.T(), err, domain.ErrInvalidCredential)
}

func (s *IdentityServiceTestSuite) TestUpdateProfile_EmptyPasswordKeepsCurrent() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	empty := ""

	err := s.service.UpdateProfile(context.Background(), user.ID, request.UpdateProfileRequest{
		Name: "Ada", Email: "ada@x.io", Password: &empty,
	})
	require.NoError(s.T(), err)

	_, err = s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: "pw123"})
	assert.NoError(s.T(), err)

	_, err = s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: ""})
	assert.ErrorIs(s.T(), err, domain.ErrInvalidCredential)
}

func (s *IdentityServiceTestSuite) TestRegister_MultiBytePassword() {
	password := strings.Repeat("é", 40)
	s.register("Ada", "ada", "ada@x.io", password)

	_, err := s.service.Login(context.Background(), request.LoginRequest{Username: "ada", Password: password})
	assert.NoError(s.T(), err)
}

func (s *IdentityServiceTestSuite) TestUpdateProfile_InvalidatesCachedProfile() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")

	_, err := s.service.GetProfile(context.Background(), user.ID)
	require.NoError(s.T(), err)

	err = s.service.UpdateProfile(context.Background(), user.ID, request.UpdateProfileRequest{Name: "Countess", Email: "ada@x.io"})
	require.NoError(s.T(), err)

	profile, _ := s.service.GetProfile(context.Background(), user.ID)
	assert.Equal(s.T(), "Countess", profile.Name)
}

func (s *IdentityServiceTestSuite) TestUpdateProfile_NotFound() {
	err := s.service.UpdateProfile(context.Background(), "user-missing", request.UpdateProfileRequest{Name: "x", Email: "x@x.io"})

	assert.ErrorIs(s.T(), err, domain.ErrNotFound)
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_TooLarge() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")

	_, err := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(2<<20))

	assert.ErrorIs(s.T(), err, domain.ErrInvalidAsset)
	assert.Zero(s.T(), s.blobs.calls)
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_UnderstatedSize() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	upload := s.jpeg(2 << 20)
	upload.Size = 10

	_, err := s.service.ReplacePhoto(context.Background(), user.ID, upload)

	assert.ErrorIs(s.T(), err, domain.ErrInvalidAsset)
	assert.Zero(s.T(), s.blobs.calls)
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_NotAnImage() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	upload := s.jpeg(100)
	upload.ContentType = "application/pdf"

	_, err := s.service.ReplacePhoto(context.Background(), user.ID, upload)

	assert.ErrorIs(s.T(), err, domain.ErrInvalidAsset)
	assert.Zero(s.T(), s.blobs.calls)
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_NotFound() {
	_, err := s.service.ReplacePhoto(context.Background(), "user-missing", s.jpeg(100))

	assert.ErrorIs(s.T(), err, domain.ErrNotFound)
	assert.Zero(s.T(), s.blobs.calls)
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_ReplacesExisting() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")

	first, err := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(500_000))
	require.NoError(s.T(), err)
	Expect(first).To(HaveSuffix(".jpeg"))

	second, err := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(500_000))
	require.NoError(s.T(), err)

	assert.NotEqual(s.T(), first, second)
	assert.False(s.T(), s.blobs.has(s.blobs.NameFromURL(first)))
	assert.True(s.T(), s.blobs.has(s.blobs.NameFromURL(second)))

	profile, _ := s.service.GetProfile(context.Background(), user.ID)
	Expect(*profile.PhotoURL).To(Equal(second))
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_PreviousObjectMissing() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	stale := "https://blobs.test/photos/gone.png"
	require.NoError(s.T(), s.repo.Update(context.Background(), user.ID, domain.UserChanges{PhotoURL: &stale}))

	url, err := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(100))

	assert.NoError(s.T(), err)
	assert.NotEmpty(s.T(), url)
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_UploadFailureKeepsOldPhoto() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	first, _ := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(100))

	s.blobs.uploadErr = errors.New("bucket offline")
	_, err := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(100))

	assert.ErrorIs(s.T(), err, domain.ErrCollaboratorUnavailable)
	assert.NotContains(s.T(), err.Error(), "bucket offline")
	assert.True(s.T(), s.blobs.has(s.blobs.NameFromURL(first)))

	stored, _ := s.repo.FindByID(context.Background(), user.ID)
	Expect(*stored.PhotoURL).To(Equal(first))
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_DeleteFailureKeepsNewPhoto() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	first, _ := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(100))

	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	defer slog.SetDefault(previous)

	s.blobs.deleteErr = errors.New("permission denied")
	second, err := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(100))

	Expect(logs.String()).To(ContainSubstring(`"step":"delete_previous"`))
	Expect(logs.String()).To(ContainSubstring(`"error":"permission denied"`))
	Expect(logs.String()).To(ContainSubstring(`"orphan":"` + s.blobs.NameFromURL(first) + `"`))

	assert.ErrorIs(s.T(), err, domain.ErrAssetDeleteFailed)
	assert.Empty(s.T(), second)
	assert.True(s.T(), s.blobs.has(s.blobs.NameFromURL(first)))

	stored, _ := s.repo.FindByID(context.Background(), user.ID)
	Expect(*stored.PhotoURL).NotTo(Equal(first))
}

// photoRecordFailingRepository refuses to record photo URLs.
type photoRecordFailingRepository struct {
	port.UserRepository
}

func (r photoRecordFailingRepository) Update(ctx context.Context, id string, changes domain.UserChanges) error {
	if changes.PhotoURL != nil {
		return errors.New("database is locked")
	}

	return r.UserRepository.Update(ctx, id, changes)
}

func (s *IdentityServiceTestSuite) TestReplacePhoto_RecordFailureRemovesUpload() {
	user := s.register("Ada", "ada", "ada@x.io", "pw123")
	first, err := s.service.ReplacePhoto(context.Background(), user.ID, s.jpeg(100))
	require.NoError(s.T(), err)

	svc := service.NewIdentityService(photoRecordFailingRepository{s.repo}, util.NewBcryptHasher(), s.tokens, s.blobs, nil, nil)

	_, err = svc.ReplacePhoto(context.Background(), user.ID, s.jpeg(100))

	assert.ErrorIs(s.T(), err, domain.ErrCollaboratorUnavailable)
	assert.NotContains(s.T(), err.Error(), "locked")

	s.blobs.mu.Lock()
	names := make([]string, 0, len(s.blobs.objects))
	for name := range s.blobs.objects {
		names = append(names, name)
	}
	s.blobs.mu.Unlock()

	assert.Equal(s.T(), []string{s.blobs.NameFromURL(first)}, names)

	stored, _ := s.repo.FindByID(context.Background(), user.ID)
	Expect(*stored.PhotoURL).To(Equal(first))
}

// failingRepository fails every call with a raw storage error.
type failingRepository struct {
	port.UserRepository
}

func (failingRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error) {
	return domain.User{}, fmt.Errorf("dial tcp 10.0.0.1:5432: connection refused")
}

func (failingRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	return domain.User{}, fmt.Errorf("dial tcp 10.0.0.1:5432: connection refused")
}

func TestIdentityService_CollaboratorUnavailable(t *testing.T) {
	tokens, _ := util.NewJWTIssuer("test-secret")
	svc := service.NewIdentityService(failingRepository{}, util.NewBcryptHasher(), tokens, newFakeBlobStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, request.RegisterRequest{Name: "Ada", Username: "ada", Email: "ada@x.io", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
	assert.NotContains(t, err.Error(), "10.0.0.1")

	_, err = svc.Login(ctx, request.LoginRequest{Username: "ada", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)

	_, err = svc.GetProfile(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
}

// racingRepository hides existing rows from the duplicate check so Create hits
// the storage constraint.
type racingRepository struct {
	port.UserRepository
}

func (racingRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func TestIdentityService_RegisterRaceClosedByConstraint(t *testing.T) {
	repo := repository.NewUserRepository(InitTestDB(), nil)
	tokens, _ := util.NewJWTIssuer("test-secret")
	svc := service.NewIdentityService(racingRepository{repo}, util.NewBcryptHasher(), tokens, newFakeBlobStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, request.RegisterRequest{Name: "Ada", Username: "ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, request.RegisterRequest{Name: "Ada2", Username: "ada", Email: "other@x.io", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrDuplicateCredential)
}

// ttlRecordingCache remembers the TTL of every write.
type ttlRecordingCache struct {
	port.CacheRepository
	ttls []time.Duration
}

func (c *ttlRecordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.ttls = append(c.ttls, ttl)
	return c.CacheRepository.Set(ctx, key, value, ttl)
}

func TestIdentityService_ProfileCacheBoundsStaleness(t *testing.T) {
	repo := repository.NewUserRepository(InitTestDB(), nil)
	tokens, _ := util.NewJWTIssuer("test-secret")
	cache := &ttlRecordingCache{CacheRepository: memory.NewMemoryRepository(nil)}
	svc := service.NewIdentityService(repo, util.NewBcryptHasher(), tokens, newFakeBlobStore(), cache, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, request.RegisterRequest{Name: "Ada", Username: "ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)

	require.Len(t, cache.ttls, 1)
	assert.Equal(t, service.ProfileCacheTTL, cache.ttls[0])
	assert.LessOrEqual(t, cache.ttls[0], time.Minute)
}
