package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"

	"identityapp/internal/adapter/database/memory"
	"identityapp/internal/adapter/database/sqlite/repository"
	"identityapp/internal/adapter/http/middleware"
	"identityapp/internal/core/domain"
	"identityapp/internal/core/port"
	"identityapp/internal/core/service"
	"identityapp/internal/core/util"
	. "identityapp/pkg/test"

	"github.com/gin-gonic/gin"
)

type memoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: map[string][]byte{}}
}

func (m *memoryBlobStore) Upload(ctx context.Context, name string, contentType string, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[name] = body
	return "https://blobs.test/photos/" + name, nil
}

func (m *memoryBlobStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[name]; !ok {
		return domain.ErrNotFound
	}

	delete(m.objects, name)
	return nil
}

func (m *memoryBlobStore) NameFromURL(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

func (m *memoryBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type testApp struct {
	Router *gin.Engine
	Repo   port.UserRepository
	Blobs  *memoryBlobStore
}

func newTestApp() *testApp {
	gin.SetMode(gin.TestMode)

	db := InitTestDB()
	repo := repository.NewUserRepository(db, nil)
	blobs := newMemoryBlobStore()

	tokens, err := util.NewJWTIssuer("handler-secret")
	if err != nil {
		panic(err)
	}

	svc := service.NewIdentityService(repo, util.NewBcryptHasher(), tokens, blobs, memory.NewMemoryRepository(nil), nil)

	return &testApp{
		Router: setupTestRouter(NewAuthHandler(svc), NewUserHandler(svc), svc),
		Repo:   repo,
		Blobs:  blobs,
	}
}

func setupTestRouter(authHandler *AuthHandler, userHandler *UserHandler, svc port.IdentityService) *gin.Engine {
	router := gin.New()
	router.Use(middleware.CurrentMiddleware())

	public := router.Group("/")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
		public.DELETE("/logout", authHandler.Logout)
	}

	protected := router.Group("/users")
	protected.Use(middleware.SessionMiddleware(svc))
	{
		protected.GET("/:id", userHandler.GetProfile)
		protected.PUT("/:id", userHandler.UpdateProfile)
		protected.POST("/:id/photo", userHandler.ReplacePhoto)
	}

	return router
}

func (a *testApp) do(method, path, body, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)

	return rr
}

func (a *testApp) upload(path, token, contentType string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="photo"; filename="avatar"`)
	header.Set("Content-Type", contentType)

	part, _ := writer.CreatePart(header)
	part.Write(content)
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)

	return rr
}

// registerAndLogin returns the new account id and a live session token.
func (a *testApp) registerAndLogin(username, email string) (string, string) {
	a.do(http.MethodPost, "/register",
		`{"name":"Test User","username":"`+username+`","email":"`+email+`","password":"12345678"}`, "")

	rr := a.do(http.MethodPost, "/login", `{"username":"`+username+`","password":"12345678"}`, "")

	var body struct {
		Data struct {
			UserID string `json:"userId"`
			Token  string `json:"token"`
		} `json:"data"`
	}
	json.Unmarshal(rr.Body.Bytes(), &body)

	return body.Data.UserID, body.Data.Token
}

func decodeData(rr *httptest.ResponseRecorder) map[string]any {
	data := gin.H{}
	json.Unmarshal(rr.Body.Bytes(), &data)

	if inner, ok := data["data"].(map[string]any); ok {
		return inner
	}

	return map[string]any{}
}
