package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/db/models"
)

// Repository manages persistence for listing products.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.ListingProduct) error
	FindByListingID(ctx context.Context, listingID uuid.UUID) (*models.ListingProduct, error)
	Update(ctx context.Context, product *models.ListingProduct) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a listing product repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, product *models.ListingProduct) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) FindByListingID(ctx context.Context, listingID uuid.UUID) (*models.ListingProduct, error) {
	var product models.ListingProduct
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) Update(ctx context.Context, product *models.ListingProduct) error {
	return r.db.WithContext(ctx).Save(product).Error
}
