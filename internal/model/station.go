package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Station represents a physical water-service location being monitored.
type Station struct {
	ID             string  `gorm:"primaryKey;size:36" json:"id"`
	Name           string  `gorm:"size:255;not null" json:"name"`
	NameAr         string  `gorm:"size:255;not null" json:"nameAr"`
	LocationName   string  `gorm:"size:255;not null" json:"locationName"`
	LocationNameAr string  `gorm:"size:255;not null" json:"locationNameAr"`
	Latitude       float64 `gorm:"not null" json:"latitude"`
	Longitude      float64 `gorm:"not null" json:"longitude"`
	Address        string  `gorm:"size:512" json:"address,omitempty"`
	AddressAr      string  `gorm:"size:512" json:"addressAr,omitempty"`
	Status         string  `gorm:"size:32;not null;default:active" json:"status"`
	CapacityLiters int     `json:"capacityLiters,omitempty"`
	OperatorID     string  `gorm:"index;size:36" json:"operatorId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (s *Station) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
