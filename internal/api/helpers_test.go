package api

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/database"
	"cvbuilder/internal/resume"
)

const testInternalSecret = "internal-s3cret"

type testServer struct {
	router   *gin.Engine
	db       *gorm.DB
	accounts *auth.Accounts
}

type serverOption func(*config.Config)

func withPublicRateLimit(rps float64, burst int) serverOption {
	return func(cfg *config.Config) {
		cfg.Public.RateLimitPerSec = rps
		cfg.Public.RateLimitBurst = burst
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	privatePEM, publicPEM := testKeyPEM(t)
	tokens, err := auth.NewAuthService(privatePEM, publicPEM, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	accounts := auth.NewAccounts(db, tokens, auth.NewMemorySessionStore(), auth.LoginPolicy{
		RateLimitPerHour: 100,
		LockThreshold:    5,
		LockTTL:          time.Minute,
	})

	cfg := &config.Config{
		API:    config.APIConfig{InternalSecret: testInternalSecret},
		Public: config.PublicConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Resumes:  resume.NewService(db, resume.Options{ShareBaseURL: "https://cv.example.com"}),
		Accounts: accounts,
	})
	return &testServer{router: router, db: db, accounts: accounts}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(sqlite.Open(fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name)), "silent")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func testKeyPEM(t *testing.T) ([]byte, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return privatePEM, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
}

// do 发送请求；body 为 string 时原样发送，否则编码为 JSON。
func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, username string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/register", map[string]any{
		"username":   username,
		"email":      username + "@example.com",
		"password":   "correct-horse",
		"first_name": strings.ToUpper(username[:1]) + username[1:],
		"last_name":  "Tester",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) login(t *testing.T, username, password string) map[string]any {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/token", map[string]any{"username": username, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)
}

// signup 注册并登录，返回 access token。
func (s *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	s.register(t, username)
	return s.login(t, username, "correct-horse")["access_token"].(string)
}

func (s *testServer) createResume(t *testing.T, token, title string) uint {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": title}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(decode(t, rec)["id"].(float64))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}
