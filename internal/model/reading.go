package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reading represents a point-in-time measurement set recorded for a station
// on a given date. At most one reading may exist per (station, reading_date).
// ReadingDate is stored as a plain YYYY-MM-DD string so that the calendar-date
// uniqueness holds regardless of the device timezone the value originated in.
type Reading struct {
	ID                  string `gorm:"primaryKey;size:36"`
	StationID           string `gorm:"size:36;not null;uniqueIndex:idx_readings_station_date"`
	OperatorID          string `gorm:"size:36;not null;index"`
	ReadingDate         string `gorm:"size:10;not null;uniqueIndex:idx_readings_station_date"`
	PHLevel             *float64
	TDSLevel            *int
	Temperature         *float64
	Pressure            *float64
	TankLevelPercentage *int
	Notes               *string `gorm:"type:text"`
	NotesAr             *string `gorm:"type:text"`
	IsSynced            bool    `gorm:"not null;default:false;index"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName keeps the historical table name used by the mobile schema.
func (Reading) TableName() string { return "daily_readings" }

func (r *Reading) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
