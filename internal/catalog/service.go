package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/db/models"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
)

// SellerAccounts exposes the seller lookup the catalog service needs.
type SellerAccounts interface {
	Ready(ctx context.Context, userID uuid.UUID) (*models.SellerAccount, bool, error)
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Repo    Repository
	Sellers SellerAccounts
	Stripe  StripeCatalogClient
	Logger  *logger.Logger
}

// Service manages the Stripe product and price objects that back listings.
// Products and prices live on the seller's connected account so charges run
// directly against it.
type Service struct {
	repo    Repository
	sellers SellerAccounts
	stripe  StripeCatalogClient
	logg    *logger.Logger
}

// SetupProductInput carries the data needed to publish a listing to Stripe.
type SetupProductInput struct {
	ListingID    uuid.UUID
	SellerUserID uuid.UUID
	Title        string
	UnitAmount   int64
	Currency     string
}

// NewService builds a catalog service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Sellers == nil {
		return nil, errors.New("sellers service is required")
	}
	if params.Stripe == nil {
		return nil, errors.New("stripe client is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:    params.Repo,
		sellers: params.Sellers,
		stripe:  params.Stripe,
		logg:    params.Logger,
	}, nil
}

// SetupProduct creates the Stripe product and initial price for a listing on
// the seller's connected account. A listing gets exactly one product; calling
// again returns the existing record.
func (s *Service) SetupProduct(ctx context.Context, input SetupProductInput) (*models.ListingProduct, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	if input.SellerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller user id is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.UnitAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit amount must be positive")
	}

	existing, err := s.repo.FindByListingID(ctx, input.ListingID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing product")
	}
	if existing != nil {
		return existing, nil
	}

	acct, err := s.requireSellerAccount(ctx, input.SellerUserID)
	if err != nil {
		return nil, err
	}

	productParams := &stripe.ProductParams{
		Name: stripe.String(input.Title),
		Metadata: map[string]string{
			"listing_id": input.ListingID.String(),
		},
	}
	productParams.SetStripeAccount(acct.StripeAccountID)
	remoteProduct, err := s.stripe.CreateProduct(ctx, productParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe product")
	}

	remotePrice, err := s.createPrice(ctx, acct.StripeAccountID, remoteProduct.ID, input.UnitAmount, input.Currency)
	if err != nil {
		return nil, err
	}

	record := &models.ListingProduct{
		ListingID:       input.ListingID,
		SellerUserID:    input.SellerUserID,
		StripeProductID: remoteProduct.ID,
		StripePriceID:   remotePrice.ID,
		Active:          true,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist listing product")
	}

	s.logg.Info(s.logg.WithListingID(ctx, input.ListingID.String()), "listing product created")
	return record, nil
}

// UpdatePrice rotates the listing's price: the old Stripe price is archived
// and a fresh one becomes active. Stripe prices are immutable, so the amount
// can only change by replacement.
func (s *Service) UpdatePrice(ctx context.Context, listingID uuid.UUID, unitAmount int64, currency string) (*models.ListingProduct, error) {
	if unitAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit amount must be positive")
	}

	record, err := s.requireProduct(ctx, listingID)
	if err != nil {
		return nil, err
	}
	acct, err := s.requireSellerAccount(ctx, record.SellerUserID)
	if err != nil {
		return nil, err
	}

	archiveParams := &stripe.PriceParams{Active: stripe.Bool(false)}
	archiveParams.SetStripeAccount(acct.StripeAccountID)
	if _, err := s.stripe.UpdatePrice(ctx, record.StripePriceID, archiveParams); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive stripe price")
	}

	fresh, err := s.createPrice(ctx, acct.StripeAccountID, record.StripeProductID, unitAmount, currency)
	if err != nil {
		return nil, err
	}

	record.StripePriceID = fresh.ID
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist rotated price")
	}

	s.logg.Info(s.logg.WithListingID(ctx, listingID.String()), "listing price rotated")
	return record, nil
}

// SetActive toggles whether the listing product is purchasable.
func (s *Service) SetActive(ctx context.Context, listingID uuid.UUID, active bool) (*models.ListingProduct, error) {
	record, err := s.requireProduct(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if record.Active == active {
		return record, nil
	}

	record.Active = active
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist active flag")
	}
	return record, nil
}

// PurchasableProduct loads the listing product and rejects listings a buyer
// cannot purchase: no product published, or the product toggled inactive.
// Unlike the seller management paths, a missing row here is a buyer-facing
// rejection, not a 404.
func (s *Service) PurchasableProduct(ctx context.Context, listingID uuid.UUID) (*models.ListingProduct, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	record, err := s.repo.FindByListingID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotPurchasable, "listing has no product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing product")
	}
	if !record.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotPurchasable, "listing product is inactive")
	}
	return record, nil
}

// ActivePrice resolves the listing's current price from Stripe, including its
// unit amount. Used by checkout to price the session.
func (s *Service) ActivePrice(ctx context.Context, listingID uuid.UUID) (*models.ListingProduct, *stripe.Price, error) {
	record, err := s.PurchasableProduct(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}

	acct, err := s.requireSellerAccount(ctx, record.SellerUserID)
	if err != nil {
		return nil, nil, err
	}

	params := &stripe.PriceParams{}
	params.SetStripeAccount(acct.StripeAccountID)
	remotePrice, err := s.stripe.GetPrice(ctx, record.StripePriceID, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe price")
	}
	return record, remotePrice, nil
}

func (s *Service) createPrice(ctx context.Context, stripeAccountID, productID string, unitAmount int64, currency string) (*stripe.Price, error) {
	cur := strings.ToLower(strings.TrimSpace(currency))
	if cur == "" {
		cur = "usd"
	}

	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(unitAmount),
		Currency:   stripe.String(cur),
	}
	params.SetStripeAccount(stripeAccountID)

	remotePrice, err := s.stripe.CreatePrice(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe price")
	}
	return remotePrice, nil
}

func (s *Service) requireProduct(ctx context.Context, listingID uuid.UUID) (*models.ListingProduct, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	record, err := s.repo.FindByListingID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing product")
	}
	return record, nil
}

func (s *Service) requireSellerAccount(ctx context.Context, sellerUserID uuid.UUID) (*models.SellerAccount, error) {
	acct, _, err := s.sellers.Ready(ctx, sellerUserID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, pkgerrors.New(pkgerrors.CodeSellerNotReady, "seller has no payment account")
	}
	return acct, nil
}
