package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/relistco/relist-backend/pkg/db"
	"github.com/relistco/relist-backend/pkg/db/models"
	"github.com/relistco/relist-backend/pkg/enums"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
	"github.com/relistco/relist-backend/pkg/pagination"
)

const uniqueStripeObjectIDConstraint = "uq_payment_transactions_stripe_object_id"

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service owns the payment transaction ledger. Rows are keyed by the id of
// the Stripe object that proves the money movement (the payment intent during
// checkout, or the application fee when that is all we have); the datastore's
// unique constraint on that key is what makes event replay safe.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// RecordInput carries everything needed to write a ledger row.
type RecordInput struct {
	StripeObjectID        string
	StripeChargeID        string
	CheckoutSessionID     string
	ListingID             uuid.UUID
	BuyerUserID           uuid.UUID
	SellerUserID          uuid.UUID
	SellerStripeAccountID string
	AmountCents           int64
	FeeCents              int64
	Currency              string
}

// ListParams describes a transaction history request.
type ListParams struct {
	UserID uuid.UUID
	Role   Role
	Limit  int
	Cursor string
}

// ListResult is one page of transaction history.
type ListResult struct {
	Items  []models.PaymentTransaction `json:"items"`
	Cursor string                      `json:"cursor,omitempty"`
}

// NewService builds a ledger service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// RecordPending writes the provisional row for an in-flight checkout. A
// concurrent duplicate resolves to the already-stored row.
func (s *Service) RecordPending(ctx context.Context, input RecordInput) (*models.PaymentTransaction, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	txn := txnFromInput(input, enums.TransactionStatusPending)
	if err := s.repo.Create(ctx, txn); err != nil {
		if pkgdb.IsUniqueViolation(err, uniqueStripeObjectIDConstraint) {
			return s.findRequired(ctx, input.StripeObjectID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist pending transaction")
	}
	return txn, nil
}

// RecordSucceeded upserts the authoritative success row. Replays of the same
// event land on the unique key and converge on the same stored state.
func (s *Service) RecordSucceeded(ctx context.Context, input RecordInput) (*models.PaymentTransaction, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByStripeObjectID(ctx, input.StripeObjectID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if existing != nil {
		return s.applySuccess(ctx, existing, input)
	}

	txn := txnFromInput(input, enums.TransactionStatusSucceeded)
	if err := s.repo.Create(ctx, txn); err != nil {
		if pkgdb.IsUniqueViolation(err, uniqueStripeObjectIDConstraint) {
			// lost the race with a concurrent insert; converge on that row
			winner, findErr := s.findRequired(ctx, input.StripeObjectID)
			if findErr != nil {
				return nil, findErr
			}
			return s.applySuccess(ctx, winner, input)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist succeeded transaction")
	}

	s.logg.Info(s.logg.WithListingID(ctx, input.ListingID.String()), "transaction recorded succeeded")
	return txn, nil
}

// RecordFailed upserts a failed row, used when Stripe reports a definitive
// payment failure with full purchase context.
func (s *Service) RecordFailed(ctx context.Context, input RecordInput) (*models.PaymentTransaction, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByStripeObjectID(ctx, input.StripeObjectID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if existing != nil {
		return s.applyStatus(ctx, existing, enums.TransactionStatusFailed)
	}

	txn := txnFromInput(input, enums.TransactionStatusFailed)
	if err := s.repo.Create(ctx, txn); err != nil {
		if pkgdb.IsUniqueViolation(err, uniqueStripeObjectIDConstraint) {
			winner, findErr := s.findRequired(ctx, input.StripeObjectID)
			if findErr != nil {
				return nil, findErr
			}
			return s.applyStatus(ctx, winner, enums.TransactionStatusFailed)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist failed transaction")
	}
	return txn, nil
}

// MarkFailed flips an existing row to failed, e.g. when the platform fee is
// refunded. Unknown object ids are a no-op so refund events for rows we never
// stored can be acknowledged.
func (s *Service) MarkFailed(ctx context.Context, stripeObjectID string) (bool, error) {
	txn, err := s.find(ctx, stripeObjectID)
	if err != nil || txn == nil {
		return false, err
	}
	if txn.Status == enums.TransactionStatusFailed {
		return false, nil
	}

	if _, err := s.applyStatus(ctx, txn, enums.TransactionStatusFailed); err != nil {
		return false, err
	}
	return true, nil
}

// MarkCanceled cancels a still-pending row, e.g. when a checkout session
// expires. Terminal rows are left untouched.
func (s *Service) MarkCanceled(ctx context.Context, stripeObjectID string) (bool, error) {
	txn, err := s.find(ctx, stripeObjectID)
	if err != nil || txn == nil {
		return false, err
	}
	if txn.Status.IsTerminal() {
		return false, nil
	}

	if _, err := s.applyStatus(ctx, txn, enums.TransactionStatusCanceled); err != nil {
		return false, err
	}
	return true, nil
}

// Get loads a single transaction by its Stripe object id.
func (s *Service) Get(ctx context.Context, stripeObjectID string) (*models.PaymentTransaction, error) {
	return s.findRequired(ctx, stripeObjectID)
}

// List returns one page of the user's transaction history.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	after, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	role := params.Role
	if role == "" {
		role = RoleAll
	}

	rows, next, err := s.repo.ListByUser(ctx, ListQuery{
		UserID: params.UserID,
		Role:   role,
		Limit:  params.Limit,
		After:  after,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transactions")
	}

	result := &ListResult{Items: rows}
	if next != nil {
		result.Cursor = pagination.Encode(*next)
	}
	return result, nil
}

// ListByListing returns every transaction recorded against a listing.
func (s *Service) ListByListing(ctx context.Context, listingID uuid.UUID) ([]models.PaymentTransaction, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	rows, err := s.repo.ListByListing(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list listing transactions")
	}
	return rows, nil
}

func (s *Service) applySuccess(ctx context.Context, txn *models.PaymentTransaction, input RecordInput) (*models.PaymentTransaction, error) {
	// Failed and canceled are terminal. A late or replayed success event must
	// not resurrect such a row; acknowledge it and keep the stored state.
	if txn.Status.IsTerminal() && txn.Status != enums.TransactionStatusSucceeded {
		s.logg.Warn(s.logg.WithListingID(ctx, txn.ListingID.String()),
			"ignoring success for "+txn.Status.String()+" transaction")
		return txn, nil
	}

	changed := txn.Status != enums.TransactionStatusSucceeded
	txn.Status = enums.TransactionStatusSucceeded
	if input.StripeChargeID != "" {
		txn.StripeChargeID = &input.StripeChargeID
	}
	if input.FeeCents > 0 {
		txn.FeeCents = input.FeeCents
	}
	if input.AmountCents > 0 {
		txn.AmountCents = input.AmountCents
	}
	if input.SellerStripeAccountID != "" {
		txn.SellerStripeAccountID = input.SellerStripeAccountID
	}

	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction")
	}
	if changed {
		s.logg.Info(s.logg.WithListingID(ctx, txn.ListingID.String()), "transaction marked succeeded")
	}
	return txn, nil
}

func (s *Service) applyStatus(ctx context.Context, txn *models.PaymentTransaction, status enums.TransactionStatus) (*models.PaymentTransaction, error) {
	if txn.Status == status {
		return txn, nil
	}
	txn.Status = status
	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction status")
	}
	s.logg.Info(s.logg.WithListingID(ctx, txn.ListingID.String()), "transaction marked "+status.String())
	return txn, nil
}

func (s *Service) find(ctx context.Context, stripeObjectID string) (*models.PaymentTransaction, error) {
	if strings.TrimSpace(stripeObjectID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe object id is required")
	}
	txn, err := s.repo.FindByStripeObjectID(ctx, stripeObjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	return txn, nil
}

func (s *Service) findRequired(ctx context.Context, stripeObjectID string) (*models.PaymentTransaction, error) {
	txn, err := s.find(ctx, stripeObjectID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func validateInput(input RecordInput) error {
	if strings.TrimSpace(input.StripeObjectID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe object id is required")
	}
	if input.ListingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	if input.BuyerUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer user id is required")
	}
	if input.SellerUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller user id is required")
	}
	return nil
}

func txnFromInput(input RecordInput, status enums.TransactionStatus) *models.PaymentTransaction {
	txn := &models.PaymentTransaction{
		StripeObjectID:        input.StripeObjectID,
		ListingID:             input.ListingID,
		BuyerUserID:           input.BuyerUserID,
		SellerUserID:          input.SellerUserID,
		SellerStripeAccountID: input.SellerStripeAccountID,
		AmountCents:           input.AmountCents,
		FeeCents:              input.FeeCents,
		Currency:              normalizeCurrency(input.Currency),
		Status:                status,
	}
	if input.StripeChargeID != "" {
		txn.StripeChargeID = &input.StripeChargeID
	}
	if input.CheckoutSessionID != "" {
		txn.CheckoutSessionID = &input.CheckoutSessionID
	}
	return txn
}

func normalizeCurrency(currency string) string {
	cur := strings.ToLower(strings.TrimSpace(currency))
	if cur == "" {
		return "usd"
	}
	return cur
}
