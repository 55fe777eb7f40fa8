package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"waterops-backend/internal/syncdata"
)

// LocalStation mirrors a station row on the device. The local store is a
// cache: the server remains the single source of truth.
type LocalStation struct {
	ID             string `gorm:"primaryKey;size:36"`
	Name           string `gorm:"not null"`
	NameAr         string `gorm:"not null"`
	LocationName   string
	LocationNameAr string
	Latitude       float64
	Longitude      float64
	Status         string `gorm:"size:32"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LocalReading is a reading recorded on the device. Rows are written
// optimistically on user action with IsSynced=false and flip to true only
// after the server acknowledges persistence. IsRemote tracks whether ID is
// a server-issued identifier; until then ID is a device-generated UUID used
// as the upload correlation reference.
type LocalReading struct {
	ID                  string `gorm:"primaryKey;size:36"`
	StationID           string `gorm:"size:36;not null;index"`
	ReadingDate         string `gorm:"size:10;not null;index"`
	PHLevel             *float64
	TDSLevel            *int
	Temperature         *float64
	Pressure            *float64
	TankLevelPercentage *int
	Notes               *string
	NotesAr             *string
	IsSynced            bool `gorm:"not null;default:false;index"`
	IsRemote            bool `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LocalFault is a fault report recorded on the device, with the same sync
// bookkeeping as LocalReading.
type LocalFault struct {
	ID            string `gorm:"primaryKey;size:36"`
	StationID     string `gorm:"size:36;not null;index"`
	Title         string `gorm:"not null"`
	TitleAr       string `gorm:"not null"`
	Description   string `gorm:"not null"`
	DescriptionAr string `gorm:"not null"`
	Priority      string `gorm:"size:32"`
	Latitude      *float64
	Longitude     *float64
	PhotoURL      *string
	IsSynced      bool `gorm:"not null;default:false;index"`
	IsRemote      bool `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LocalStore is the embedded store of the field client.
type LocalStore struct {
	db *gorm.DB
}

// OpenLocalStore opens (or creates) the device database and migrates it.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	if err := db.AutoMigrate(&LocalStation{}, &LocalReading{}, &LocalFault{}); err != nil {
		return nil, fmt.Errorf("local automigrate failed: %w", err)
	}
	return &LocalStore{db: db}, nil
}

// NewLocalStore wraps an already-open gorm database. Used by tests.
func NewLocalStore(db *gorm.DB) (*LocalStore, error) {
	if err := db.AutoMigrate(&LocalStation{}, &LocalReading{}, &LocalFault{}); err != nil {
		return nil, fmt.Errorf("local automigrate failed: %w", err)
	}
	return &LocalStore{db: db}, nil
}

// DB exposes the underlying gorm handle.
func (ls *LocalStore) DB() *gorm.DB {
	return ls.db
}

// Close releases the underlying connection.
func (ls *LocalStore) Close() error {
	sqlDB, err := ls.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AddReading records a reading optimistically: the row is written
// immediately and queued for the next sync run.
func (ls *LocalStore) AddReading(ctx context.Context, r *LocalReading) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.IsSynced = false
	r.IsRemote = false
	return ls.db.WithContext(ctx).Create(r).Error
}

// AddFault records a fault report optimistically.
func (ls *LocalStore) AddFault(ctx context.Context, f *LocalFault) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Priority == "" {
		f.Priority = "medium"
	}
	f.IsSynced = false
	f.IsRemote = false
	return ls.db.WithContext(ctx).Create(f).Error
}

// SaveReading persists an offline edit of an existing row. The row drops
// back to unsynced and is re-uploaded on the next run.
func (ls *LocalStore) SaveReading(ctx context.Context, r *LocalReading) error {
	r.IsSynced = false
	return ls.db.WithContext(ctx).Save(r).Error
}

// SaveFault persists an offline edit of an existing fault row.
func (ls *LocalStore) SaveFault(ctx context.Context, f *LocalFault) error {
	f.IsSynced = false
	return ls.db.WithContext(ctx).Save(f).Error
}

// UnsyncedReadings returns rows pending upload, in creation order so the
// server sees them in submission order.
func (ls *LocalStore) UnsyncedReadings(ctx context.Context) ([]LocalReading, error) {
	var readings []LocalReading
	err := ls.db.WithContext(ctx).
		Where("is_synced = ?", false).
		Order("created_at ASC").
		Find(&readings).Error
	return readings, err
}

// UnsyncedFaults returns fault rows pending upload, in creation order.
func (ls *LocalStore) UnsyncedFaults(ctx context.Context) ([]LocalFault, error) {
	var faults []LocalFault
	err := ls.db.WithContext(ctx).
		Where("is_synced = ?", false).
		Order("created_at ASC").
		Find(&faults).Error
	return faults, err
}

// AdoptReading marks a locally created row as persisted, replacing its
// device-generated identifier with the server-issued one in place.
func (ls *LocalStore) AdoptReading(ctx context.Context, localID, serverID string) error {
	return ls.db.WithContext(ctx).
		Model(&LocalReading{}).
		Where("id = ?", localID).
		Updates(map[string]any{"id": serverID, "is_synced": true, "is_remote": true}).Error
}

// AdoptFault marks a locally created fault as persisted under its
// server-issued identifier.
func (ls *LocalStore) AdoptFault(ctx context.Context, localID, serverID string) error {
	return ls.db.WithContext(ctx).
		Model(&LocalFault{}).
		Where("id = ?", localID).
		Updates(map[string]any{"id": serverID, "is_synced": true, "is_remote": true}).Error
}

// ConfirmReading flags an updated row as acknowledged by the server.
func (ls *LocalStore) ConfirmReading(ctx context.Context, id string) error {
	return ls.db.WithContext(ctx).
		Model(&LocalReading{}).
		Where("id = ?", id).
		Update("is_synced", true).Error
}

// ConfirmFault flags an updated fault row as acknowledged by the server.
func (ls *LocalStore) ConfirmFault(ctx context.Context, id string) error {
	return ls.db.WithContext(ctx).
		Model(&LocalFault{}).
		Where("id = ?", id).
		Update("is_synced", true).Error
}

// UpsertReading writes a server-originated reading into the mirror. Data
// pulled from the server is authoritative and never re-uploaded.
func (ls *LocalStore) UpsertReading(ctx context.Context, p syncdata.ReadingPayload) error {
	reading := LocalReading{
		ID:                  p.ID,
		StationID:           p.StationID,
		ReadingDate:         p.ReadingDate,
		PHLevel:             p.PHLevel,
		TDSLevel:            p.TDSLevel,
		Temperature:         p.Temperature,
		Pressure:            p.Pressure,
		TankLevelPercentage: p.TankLevelPercentage,
		Notes:               p.Notes,
		NotesAr:             p.NotesAr,
		IsSynced:            true,
		IsRemote:            true,
	}
	return ls.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&reading).Error
}

// UpsertFault writes a server-originated fault into the mirror.
func (ls *LocalStore) UpsertFault(ctx context.Context, p syncdata.FaultPayload) error {
	fault := LocalFault{
		ID:            p.ID,
		StationID:     p.StationID,
		Title:         p.Title,
		TitleAr:       p.TitleAr,
		Description:   p.Description,
		DescriptionAr: p.DescriptionAr,
		Priority:      p.Priority,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		PhotoURL:      p.PhotoURL,
		IsSynced:      true,
		IsRemote:      true,
	}
	return ls.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&fault).Error
}

// UpsertStation refreshes one station in the mirror.
func (ls *LocalStore) UpsertStation(ctx context.Context, s LocalStation) error {
	return ls.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&s).Error
}

// Stations lists the mirrored stations by name.
func (ls *LocalStore) Stations(ctx context.Context) ([]LocalStation, error) {
	var stations []LocalStation
	err := ls.db.WithContext(ctx).Order("name").Find(&stations).Error
	return stations, err
}

// CountUnsynced reports how many rows are still awaiting upload.
func (ls *LocalStore) CountUnsynced(ctx context.Context) (readings, faults int64, err error) {
	if err = ls.db.WithContext(ctx).Model(&LocalReading{}).
		Where("is_synced = ?", false).Count(&readings).Error; err != nil {
		return 0, 0, err
	}
	if err = ls.db.WithContext(ctx).Model(&LocalFault{}).
		Where("is_synced = ?", false).Count(&faults).Error; err != nil {
		return 0, 0, err
	}
	return readings, faults, nil
}
