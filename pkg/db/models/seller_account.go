package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/enums"
)

// SellerAccount maps a platform user to their connected Stripe account.
// OnboardingCompleted is always derived from the two capability flags; callers
// go through Recompute rather than setting it directly.
type SellerAccount struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID              uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StripeAccountID     string            `gorm:"column:stripe_account_id;not null;uniqueIndex"`
	AccountType         enums.AccountType `gorm:"column:account_type;not null;default:'express'"`
	ChargesEnabled      bool              `gorm:"column:charges_enabled;not null;default:false"`
	PayoutsEnabled      bool              `gorm:"column:payouts_enabled;not null;default:false"`
	OnboardingCompleted bool              `gorm:"column:onboarding_completed;not null;default:false"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not.
func (a *SellerAccount) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Recompute derives the onboarding flag from the capability flags.
func (a *SellerAccount) Recompute() {
	a.OnboardingCompleted = a.ChargesEnabled && a.PayoutsEnabled
}
