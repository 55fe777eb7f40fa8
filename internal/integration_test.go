package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"waterops-backend/config"
	"waterops-backend/internal/api"
	"waterops-backend/internal/client"
	appdb "waterops-backend/internal/db"
	"waterops-backend/internal/model"
	"waterops-backend/internal/store"
)

const (
	integrationSecret   = "integration-test-secret"
	integrationPassword = "correct-horse-battery"
)

type fixture struct {
	srv      *httptest.Server
	serverDB *gorm.DB
	operator model.User
	station  model.Station
	sync     *client.SyncClient
	local    *client.LocalStore
}

// newFixture boots the real HTTP server over sqlite and a real field client
// over its own local database, connected through the loopback interface.
func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	serverDB, err := gorm.Open(sqlite.Open(filepath.Join(dir, "server.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, appdb.Migrate(serverDB))

	hash, err := bcrypt.GenerateFromPassword([]byte(integrationPassword), bcrypt.MinCost)
	require.NoError(t, err)
	operator := model.User{Email: "field@example.com", PasswordHash: string(hash), FirstName: "Omar", LastName: "Hassan", Role: model.RoleOperator}
	require.NoError(t, serverDB.Create(&operator).Error)

	station := model.Station{
		Name:           "Al Noor Station",
		NameAr:         "محطة النور",
		LocationName:   "North District",
		LocationNameAr: "الحي الشمالي",
		Latitude:       24.7136,
		Longitude:      46.6753,
		OperatorID:     operator.ID,
	}
	require.NoError(t, serverDB.Create(&station).Error)

	cfg := &config.Config{
		Server: config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 1},
		Auth:   config.AuthConfig{JWTSecret: integrationSecret, TokenTTL: time.Hour},
	}
	srv := httptest.NewServer(api.NewRouter(store.NewGormStore(serverDB), cfg))
	t.Cleanup(srv.Close)

	token := login(t, srv.URL, operator.Email)

	local, err := client.OpenLocalStore(filepath.Join(dir, "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	monitor := client.NewProbeMonitor(srv.URL, time.Minute)
	syncClient := client.NewSyncClient(local, monitor, srv.URL,
		func(context.Context) (string, error) { return token, nil })

	return &fixture{
		srv:      srv,
		serverDB: serverDB,
		operator: operator,
		station:  station,
		sync:     syncClient,
		local:    local,
	}
}

func login(t *testing.T, baseURL, email string) string {
	buf, err := json.Marshal(map[string]string{"email": email, "password": integrationPassword})
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Data.Token)
	return body.Data.Token
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Field work recorded offline.
	ph := 7.2
	reading := client.LocalReading{StationID: f.station.ID, ReadingDate: "2025-03-10", PHLevel: &ph}
	require.NoError(t, f.local.AddReading(ctx, &reading))
	fault := client.LocalFault{
		StationID:     f.station.ID,
		Title:         "Pump leaking",
		TitleAr:       "تسرب في المضخة",
		Description:   "Steady leak at the main pump housing",
		DescriptionAr: "تسرب مستمر عند غلاف المضخة الرئيسية",
	}
	require.NoError(t, f.local.AddFault(ctx, &fault))

	// Meanwhile the dashboard records a reading the device does not hold.
	webReading := model.Reading{StationID: f.station.ID, OperatorID: f.operator.ID, ReadingDate: "2025-03-09", IsSynced: false}
	require.NoError(t, f.serverDB.Create(&webReading).Error)

	result, err := f.sync.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Readings.Created)
	assert.Equal(t, 1, result.Faults.Created)
	assert.Empty(t, result.Errors)

	// Uploaded rows landed on the server under the caller's ownership.
	var serverReading model.Reading
	require.NoError(t, f.serverDB.First(&serverReading, "reading_date = ?", "2025-03-10").Error)
	assert.Equal(t, f.operator.ID, serverReading.OperatorID)
	assert.True(t, serverReading.IsSynced)
	require.NotNil(t, serverReading.PHLevel)
	assert.InDelta(t, ph, *serverReading.PHLevel, 0.0001)

	// The dashboard reading came down and was acknowledged.
	readings, faults, err := f.local.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, readings)
	assert.Zero(t, faults)
	require.NoError(t, f.serverDB.First(&webReading, "id = ?", webReading.ID).Error)
	assert.True(t, webReading.IsSynced)
}

func TestRoundTrip_SecondRunIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reading := client.LocalReading{StationID: f.station.ID, ReadingDate: "2025-03-10"}
	require.NoError(t, f.local.AddReading(ctx, &reading))

	_, err := f.sync.SyncAll(ctx)
	require.NoError(t, err)

	result, err := f.sync.SyncAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Readings.Created)
	assert.Zero(t, result.Readings.Updated)
	assert.Empty(t, result.Errors)

	var count int64
	f.serverDB.Model(&model.Reading{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRoundTrip_DuplicateDateRejectedPerRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := client.LocalReading{StationID: f.station.ID, ReadingDate: "2025-03-10"}
	require.NoError(t, f.local.AddReading(ctx, &first))
	_, err := f.sync.SyncAll(ctx)
	require.NoError(t, err)

	// A second device-created reading for the same station and date.
	dup := client.LocalReading{StationID: f.station.ID, ReadingDate: "2025-03-10"}
	require.NoError(t, f.local.AddReading(ctx, &dup))

	result, err := f.sync.SyncAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Readings.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "already exists")

	// The rejected row stays queued; the server still has a single reading.
	unsynced, faults, err := f.local.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unsynced)
	assert.Zero(t, faults)
	var count int64
	f.serverDB.Model(&model.Reading{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRoundTrip_ResolvedFaultStopsFlowing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fault := client.LocalFault{
		StationID:     f.station.ID,
		Title:         "Valve stuck",
		TitleAr:       "صمام عالق",
		Description:   "Main valve will not close fully",
		DescriptionAr: "الصمام الرئيسي لا يغلق بالكامل",
	}
	require.NoError(t, f.local.AddFault(ctx, &fault))
	_, err := f.sync.SyncAll(ctx)
	require.NoError(t, err)

	var serverFault model.Fault
	require.NoError(t, f.serverDB.First(&serverFault, "reported_by = ?", f.operator.ID).Error)

	// Resolve it on the server, then flag it as changed since the device
	// last saw it.
	now := time.Now().UTC()
	require.NoError(t, f.serverDB.Model(&serverFault).Updates(map[string]any{
		"status": model.FaultResolved, "resolved_at": now, "is_synced": false,
	}).Error)

	result, err := f.sync.SyncAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	// Resolved faults do not come down the sync channel.
	var localFault client.LocalFault
	require.NoError(t, f.local.DB().First(&localFault, "station_id = ?", f.station.ID).Error)
	assert.True(t, localFault.IsSynced)
}
