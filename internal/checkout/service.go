package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/relistco/relist-backend/internal/ledger"
	"github.com/relistco/relist-backend/pkg/db/models"
	"github.com/relistco/relist-backend/pkg/enums"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
)

type listingStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	MarkPending(ctx context.Context, id uuid.UUID) error
}

type priceResolver interface {
	PurchasableProduct(ctx context.Context, listingID uuid.UUID) (*models.ListingProduct, error)
	ActivePrice(ctx context.Context, listingID uuid.UUID) (*models.ListingProduct, *stripe.Price, error)
}

type sellerAccounts interface {
	Ready(ctx context.Context, userID uuid.UUID) (*models.SellerAccount, bool, error)
}

type ledgerRecorder interface {
	RecordPending(ctx context.Context, input ledger.RecordInput) (*models.PaymentTransaction, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Listings   listingStore
	Catalog    priceResolver
	Sellers    sellerAccounts
	Ledger     ledgerRecorder
	Stripe     StripeCheckoutClient
	FeePercent decimal.Decimal
	Logger     *logger.Logger
}

// Service orchestrates checkout: it gates the purchase, prices the session,
// applies the platform fee, and opens a hosted Stripe Checkout session on the
// seller's connected account.
type Service struct {
	listings   listingStore
	catalog    priceResolver
	sellers    sellerAccounts
	ledger     ledgerRecorder
	stripe     StripeCheckoutClient
	feePercent decimal.Decimal
	logg       *logger.Logger
}

// CreateSessionInput carries a buyer's checkout request.
type CreateSessionInput struct {
	ListingID  uuid.UUID
	BuyerID    uuid.UUID
	SuccessURL string
	CancelURL  string
}

// CreateSessionResult is the hosted checkout handle returned to the client.
type CreateSessionResult struct {
	SessionID       string `json:"session_id"`
	URL             string `json:"url"`
	AmountCents     int64  `json:"amount_cents"`
	FeeCents        int64  `json:"fee_cents"`
	Currency        string `json:"currency"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// NewService builds a checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Listings == nil {
		return nil, errors.New("listings service is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog service is required")
	}
	if params.Sellers == nil {
		return nil, errors.New("sellers service is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if params.Stripe == nil {
		return nil, errors.New("stripe client is required")
	}
	if params.FeePercent.IsNegative() {
		return nil, errors.New("fee percent must be non-negative")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		listings:   params.Listings,
		catalog:    params.Catalog,
		sellers:    params.Sellers,
		ledger:     params.Ledger,
		stripe:     params.Stripe,
		feePercent: params.FeePercent,
		logg:       params.Logger,
	}, nil
}

// CreateSession gates and opens a checkout session. Eligibility is checked in
// a fixed order so clients get stable error codes: listing purchasable, then
// no self-purchase, then seller readiness.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if input.SuccessURL == "" || input.CancelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "success and cancel urls are required")
	}

	listing, err := s.listings.Get(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != enums.ListingStatusAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeNotPurchasable, "listing is "+listing.Status.String())
	}
	// Product existence and active flag are purchasability checks too, so they
	// must resolve before the self-purchase and seller-readiness gates.
	if _, err := s.catalog.PurchasableProduct(ctx, input.ListingID); err != nil {
		return nil, err
	}
	if listing.SellerUserID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeSelfPurchase, "buyer owns this listing")
	}

	acct, ready, err := s.sellers.Ready(ctx, listing.SellerUserID)
	if err != nil {
		return nil, err
	}
	if acct == nil || !ready {
		return nil, pkgerrors.New(pkgerrors.CodeSellerNotReady, "seller cannot accept payments yet")
	}

	_, price, err := s.catalog.ActivePrice(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}

	feeCents := ApplicationFeeCents(price.UnitAmount, s.feePercent)
	metadata := PurchaseMetadata{
		ListingID: input.ListingID,
		BuyerID:   input.BuyerID,
		SellerID:  listing.SellerUserID,
	}.Encode()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price.ID),
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(feeCents),
			Metadata:             metadata,
		},
		Metadata: metadata,
	}
	params.SetStripeAccount(acct.StripeAccountID)

	session, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	// The payment intent materializes with the session for direct charges;
	// fall back to the session id as the ledger key if it has not yet.
	objectID := session.ID
	intentID := ""
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		objectID = session.PaymentIntent.ID
		intentID = session.PaymentIntent.ID
	}

	if _, err := s.ledger.RecordPending(ctx, ledger.RecordInput{
		StripeObjectID:        objectID,
		CheckoutSessionID:     session.ID,
		ListingID:             input.ListingID,
		BuyerUserID:           input.BuyerID,
		SellerUserID:          listing.SellerUserID,
		SellerStripeAccountID: acct.StripeAccountID,
		AmountCents:           price.UnitAmount,
		FeeCents:              feeCents,
		Currency:              string(price.Currency),
	}); err != nil {
		return nil, err
	}

	// Optimistic hold. The sale is finalized by the payment webhook, so a
	// failure here must not block the buyer.
	if err := s.listings.MarkPending(ctx, input.ListingID); err != nil {
		s.logg.Warn(s.logg.WithListingID(ctx, input.ListingID.String()), "could not reserve listing: "+err.Error())
	}

	s.logg.Info(s.logg.WithListingID(ctx, input.ListingID.String()), "checkout session created")
	return &CreateSessionResult{
		SessionID:       session.ID,
		URL:             session.URL,
		AmountCents:     price.UnitAmount,
		FeeCents:        feeCents,
		Currency:        string(price.Currency),
		PaymentIntentID: intentID,
	}, nil
}
