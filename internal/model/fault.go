package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FaultStatus defines the fault resolution workflow states.
type FaultStatus string

const (
	FaultOpen       FaultStatus = "open"
	FaultAssigned   FaultStatus = "assigned"
	FaultInProgress FaultStatus = "in_progress"
	FaultResolved   FaultStatus = "resolved"
	FaultClosed     FaultStatus = "closed"
)

// FaultPriority defines the recognized fault priorities.
type FaultPriority string

const (
	PriorityLow      FaultPriority = "low"
	PriorityMedium   FaultPriority = "medium"
	PriorityHigh     FaultPriority = "high"
	PriorityCritical FaultPriority = "critical"
)

// Fault represents an incident report against a station. IsSynced tracks
// whether the reporting device has the server copy; it is deliberately
// separate from the workflow status, which tracks whether the fault is
// still actionable.
type Fault struct {
	ID            string        `gorm:"primaryKey;size:36"`
	StationID     string        `gorm:"size:36;not null;index"`
	ReportedBy    string        `gorm:"size:36;not null;index"`
	AssignedTo    *string       `gorm:"size:36"`
	Title         string        `gorm:"size:255;not null"`
	TitleAr       string        `gorm:"size:255;not null"`
	Description   string        `gorm:"type:text;not null"`
	DescriptionAr string        `gorm:"type:text;not null"`
	Status        FaultStatus   `gorm:"size:32;not null;default:open;index"`
	Priority      FaultPriority `gorm:"size:32;not null;default:medium"`
	Latitude      *float64
	Longitude     *float64
	PhotoURL      *string `gorm:"size:512"`
	ResolvedAt    *time.Time
	IsSynced      bool      `gorm:"not null;default:false;index"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (f *Fault) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// ValidStatus reports whether s is one of the workflow states.
func ValidStatus(s FaultStatus) bool {
	switch s {
	case FaultOpen, FaultAssigned, FaultInProgress, FaultResolved, FaultClosed:
		return true
	}
	return false
}
