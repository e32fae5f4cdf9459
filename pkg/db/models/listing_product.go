package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingProduct ties a listing to its Stripe product and the currently active
// price. Price changes archive the old Stripe price and swap StripePriceID;
// historical transactions keep referencing the archived price object.
type ListingProduct struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ListingID       uuid.UUID `gorm:"column:listing_id;type:uuid;not null;uniqueIndex"`
	SellerUserID    uuid.UUID `gorm:"column:seller_user_id;type:uuid;not null;index"`
	StripeProductID string    `gorm:"column:stripe_product_id;not null"`
	StripePriceID   string    `gorm:"column:stripe_price_id;not null;index"`
	Active          bool      `gorm:"column:active;not null;default:true"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not.
func (p *ListingProduct) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
