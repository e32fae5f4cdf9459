package sellers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/db/models"
)

// Repository manages persistence for seller payment accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, acct *models.SellerAccount) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerAccount, error)
	FindByStripeAccountID(ctx context.Context, stripeAccountID string) (*models.SellerAccount, error)
	Update(ctx context.Context, acct *models.SellerAccount) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a seller account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, acct *models.SellerAccount) error {
	return r.db.WithContext(ctx).Create(acct).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerAccount, error) {
	var acct models.SellerAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *repository) FindByStripeAccountID(ctx context.Context, stripeAccountID string) (*models.SellerAccount, error) {
	var acct models.SellerAccount
	if err := r.db.WithContext(ctx).
		Where("stripe_account_id = ?", stripeAccountID).
		First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *repository) Update(ctx context.Context, acct *models.SellerAccount) error {
	return r.db.WithContext(ctx).Save(acct).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SellerAccount{}, "id = ?", id).Error
}
