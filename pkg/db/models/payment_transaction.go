package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/enums"
)

// PaymentTransaction is the ledger's unit of record, one row per purchase
// attempt. StripeObjectID is the id of the webhook-triggering object (the
// application fee or payment intent); its unique index is the idempotency key
// that makes webhook replay safe.
type PaymentTransaction struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ListingID             uuid.UUID               `gorm:"column:listing_id;type:uuid;not null;index"`
	BuyerUserID           uuid.UUID               `gorm:"column:buyer_user_id;type:uuid;not null;index"`
	SellerUserID          uuid.UUID               `gorm:"column:seller_user_id;type:uuid;not null;index"`
	StripeObjectID        string                  `gorm:"column:stripe_object_id;not null;uniqueIndex:uq_payment_transactions_stripe_object_id"`
	StripeChargeID        *string                 `gorm:"column:stripe_charge_id"`
	CheckoutSessionID     *string                 `gorm:"column:checkout_session_id"`
	AmountCents           int64                   `gorm:"column:amount_cents;not null"`
	FeeCents              int64                   `gorm:"column:fee_cents;not null;default:0"`
	Currency              string                  `gorm:"column:currency;not null;default:'usd'"`
	Status                enums.TransactionStatus `gorm:"column:status;not null;default:'pending'"`
	SellerStripeAccountID string                  `gorm:"column:seller_stripe_account_id;not null"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not.
func (t *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
