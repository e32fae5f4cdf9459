package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/db/models"
	"github.com/relistco/relist-backend/pkg/pagination"
)

// Role filters transaction history by the caller's side of the trade.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAll    Role = "all"
)

// ListQuery describes a cursor-paginated transaction history query.
type ListQuery struct {
	UserID uuid.UUID
	Role   Role
	Limit  int
	After  *pagination.Cursor
}

// Repository manages persistence for payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	FindByStripeObjectID(ctx context.Context, stripeObjectID string) (*models.PaymentTransaction, error)
	Update(ctx context.Context, txn *models.PaymentTransaction) error
	ListByUser(ctx context.Context, query ListQuery) ([]models.PaymentTransaction, *pagination.Cursor, error)
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]models.PaymentTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByStripeObjectID(ctx context.Context, stripeObjectID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("stripe_object_id = ?", stripeObjectID).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) Update(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Save(txn).Error
}

func (r *repository) ListByUser(ctx context.Context, query ListQuery) ([]models.PaymentTransaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(query.Limit)

	q := r.db.WithContext(ctx).Model(&models.PaymentTransaction{})
	switch query.Role {
	case RoleBuyer:
		q = q.Where("buyer_user_id = ?", query.UserID)
	case RoleSeller:
		q = q.Where("seller_user_id = ?", query.UserID)
	default:
		q = q.Where("buyer_user_id = ? OR seller_user_id = ?", query.UserID, query.UserID)
	}
	if query.After != nil {
		q = q.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			query.After.CreatedAt, query.After.CreatedAt, query.After.ID,
		)
	}

	var rows []models.PaymentTransaction
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) == limit {
		rows = rows[:limit-1]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

func (r *repository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
