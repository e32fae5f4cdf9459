package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/enums"
)

// Listing carries the sale-lifecycle slice of a listing. Listing content
// (title, description, search fields) is owned elsewhere; this core only
// drives Status through available → pending → sold.
type Listing struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerUserID uuid.UUID           `gorm:"column:seller_user_id;type:uuid;not null;index"`
	Title        string              `gorm:"column:title;not null"`
	Status       enums.ListingStatus `gorm:"column:status;not null;default:'available';index"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not.
func (l *Listing) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
