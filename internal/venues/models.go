package venues

import (
	"time"

	"github.com/google/uuid"
)

type Venue struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`

	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	Address     string `json:"address" gorm:"not null"`
	City        string `json:"city" gorm:"index"`
	Phone       string `json:"phone"`

	OpenTime  string `json:"open_time" gorm:"default:'06:00'"`
	CloseTime string `json:"close_time" gorm:"default:'23:00'"`
	IsActive  bool   `json:"is_active" gorm:"default:true;index"`

	Courts []Court `json:"courts,omitempty" gorm:"foreignKey:VenueID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Venue) TableName() string {
	return "venues"
}

type Court struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	VenueID uuid.UUID `json:"venue_id" gorm:"type:uuid;not null;index"`

	Name         string  `json:"name" gorm:"not null"`
	Sport        string  `json:"sport" gorm:"not null;index"`
	Surface      string  `json:"surface"`
	Indoor       bool    `json:"indoor"`
	PricePerSlot float64 `json:"price_per_slot" gorm:"not null"`
	IsActive     bool    `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Court) TableName() string {
	return "courts"
}
