package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"waterops-backend/config"
	"waterops-backend/internal/auth"
	appdb "waterops-backend/internal/db"
	"waterops-backend/internal/model"
	"waterops-backend/internal/store"
)

const (
	testJWTSecret = "api-test-secret"
	testPassword  = "correct-horse-battery"
)

// testEnv wires a real router against an on-disk sqlite database, with one
// operator and one assigned station seeded.
type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	operator model.User
	station  model.Station
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api_test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, appdb.Migrate(db))

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	operator := model.User{
		Email:        "operator@example.com",
		PasswordHash: string(hash),
		FirstName:    "Omar",
		LastName:     "Hassan",
		Role:         model.RoleOperator,
	}
	require.NoError(t, db.Create(&operator).Error)

	station := model.Station{
		Name:           "Al Noor Station",
		NameAr:         "محطة النور",
		LocationName:   "North District",
		LocationNameAr: "الحي الشمالي",
		Latitude:       24.7136,
		Longitude:      46.6753,
		OperatorID:     operator.ID,
	}
	require.NoError(t, db.Create(&station).Error)

	token, err := auth.IssueToken(testJWTSecret, operator.ID, time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSec: 1000,
			RateLimitBurst:  1000,
			CacheTTLSeconds: 1,
		},
		Auth: config.AuthConfig{
			JWTSecret: testJWTSecret,
			TokenTTL:  time.Hour,
		},
	}

	return &testEnv{
		router:   NewRouter(store.NewGormStore(db), cfg),
		db:       db,
		operator: operator,
		station:  station,
		token:    token,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
}
