package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/relistco/relist-backend/internal/checkout"
	"github.com/relistco/relist-backend/internal/ledger"
	"github.com/relistco/relist-backend/pkg/db/models"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
	"github.com/relistco/relist-backend/pkg/mailer"
	"github.com/relistco/relist-backend/pkg/metrics"
)

type ledgerService interface {
	RecordSucceeded(ctx context.Context, input ledger.RecordInput) (*models.PaymentTransaction, error)
	RecordFailed(ctx context.Context, input ledger.RecordInput) (*models.PaymentTransaction, error)
	MarkFailed(ctx context.Context, stripeObjectID string) (bool, error)
	MarkCanceled(ctx context.Context, stripeObjectID string) (bool, error)
}

type listingService interface {
	MarkSold(ctx context.Context, id uuid.UUID) error
	MarkAvailable(ctx context.Context, id uuid.UUID) error
}

type sellerSync interface {
	SyncAccount(ctx context.Context, stripeAccountID string, chargesEnabled, payoutsEnabled bool) error
}

// ServiceParams groups dependencies for the webhook processor.
type ServiceParams struct {
	Ledger   ledgerService
	Listings listingService
	Sellers  sellerSync
	Stripe   StripeChargeClient
	Mailer   mailer.Mailer
	Metrics  *metrics.WebhookMetrics
	Logger   *logger.Logger
}

// Service turns verified Stripe events into ledger and listing updates.
//
// The application fee event is the canonical proof a sale settled: its money
// landed on the platform account, and the cross-account charge fetch recovers
// the purchase metadata stamped at checkout. Recording the ledger row is the
// primary effect and its failure propagates so Stripe redelivers; marking the
// listing sold is best-effort and self-heals on replay.
type Service struct {
	ledger   ledgerService
	listings listingService
	sellers  sellerSync
	stripe   StripeChargeClient
	mailer   mailer.Mailer
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
}

// NewService builds a webhook processor.
func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Listings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "listings service required")
	}
	if params.Sellers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sellers service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		ledger:   params.Ledger,
		listings: params.Listings,
		sellers:  params.Sellers,
		stripe:   params.Stripe,
		mailer:   params.Mailer,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// HandleEvent dispatches a verified event. A nil return acknowledges the
// delivery; an error makes the caller respond non-2xx so Stripe retries.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	eventType := string(event.Type)
	ctx = s.logg.WithEventID(ctx, event.ID)
	started := time.Now()
	outcome := metrics.OutcomeProcessed

	var err error
	switch event.Type {
	case stripe.EventTypeApplicationFeeCreated:
		outcome, err = s.handleFeeCreated(ctx, event)
	case stripe.EventTypeApplicationFeeRefunded:
		outcome = s.handleFeeRefunded(ctx, event)
	case stripe.EventTypePaymentIntentSucceeded:
		outcome, err = s.handleIntentSucceeded(ctx, event)
	case stripe.EventTypePaymentIntentPaymentFailed:
		outcome = s.handleIntentFailed(ctx, event)
	case stripe.EventTypeCheckoutSessionExpired:
		outcome = s.handleSessionExpired(ctx, event)
	case stripe.EventTypeAccountUpdated:
		outcome = s.handleAccountUpdated(ctx, event)
	default:
		outcome = metrics.OutcomeSkipped
	}
	if err != nil {
		outcome = metrics.OutcomeFailed
	}

	s.metrics.IncEvent(eventType, outcome)
	s.metrics.ObserveDuration(eventType, time.Since(started))
	return err
}

// handleFeeCreated is the success path. Ledger write failures propagate;
// everything after is best-effort.
func (s *Service) handleFeeCreated(ctx context.Context, event *stripe.Event) (string, error) {
	var fee stripe.ApplicationFee
	if err := json.Unmarshal(event.Data.Raw, &fee); err != nil {
		s.logg.Error(ctx, "decode application fee event", err)
		return metrics.OutcomeMalformed, nil
	}

	if fee.Charge == nil || fee.Charge.ID == "" || fee.Account == nil || fee.Account.ID == "" {
		s.logg.Warn(ctx, "application fee without charge or account reference, acknowledging")
		return metrics.OutcomeMalformed, nil
	}

	chargeParams := &stripe.ChargeParams{}
	chargeParams.SetStripeAccount(fee.Account.ID)
	ch, err := s.stripe.GetCharge(ctx, fee.Charge.ID, chargeParams)
	if err != nil {
		return metrics.OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch cross-account charge")
	}

	meta, err := checkout.DecodePurchaseMetadata(ch.Metadata)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "charge_id", ch.ID), "charge without purchase metadata, acknowledging")
		return metrics.OutcomeMalformed, nil
	}

	objectID := fee.ID
	if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
		objectID = ch.PaymentIntent.ID
	}

	if _, err := s.ledger.RecordSucceeded(ctx, ledger.RecordInput{
		StripeObjectID:        objectID,
		StripeChargeID:        ch.ID,
		ListingID:             meta.ListingID,
		BuyerUserID:           meta.BuyerID,
		SellerUserID:          meta.SellerID,
		SellerStripeAccountID: fee.Account.ID,
		AmountCents:           ch.Amount,
		FeeCents:              fee.Amount,
		Currency:              string(ch.Currency),
	}); err != nil {
		return metrics.OutcomeFailed, err
	}

	if err := s.listings.MarkSold(ctx, meta.ListingID); err != nil {
		s.logg.Error(s.logg.WithListingID(ctx, meta.ListingID.String()), "mark listing sold", err)
	}

	s.sendReceipt(ctx, ch, meta)
	return metrics.OutcomeProcessed, nil
}

// handleFeeRefunded voids the sale record. All failures are swallowed; a
// missed refund is recoverable from Stripe's dashboard, a retry storm is not.
func (s *Service) handleFeeRefunded(ctx context.Context, event *stripe.Event) string {
	var fee stripe.ApplicationFee
	if err := json.Unmarshal(event.Data.Raw, &fee); err != nil {
		s.logg.Error(ctx, "decode application fee event", err)
		return metrics.OutcomeMalformed
	}

	objectID := fee.ID
	if fee.Charge != nil && fee.Charge.ID != "" && fee.Account != nil && fee.Account.ID != "" {
		chargeParams := &stripe.ChargeParams{}
		chargeParams.SetStripeAccount(fee.Account.ID)
		if ch, err := s.stripe.GetCharge(ctx, fee.Charge.ID, chargeParams); err == nil {
			if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
				objectID = ch.PaymentIntent.ID
			}
		} else {
			s.logg.Error(ctx, "fetch charge for refunded fee", err)
		}
	}

	changed, err := s.ledger.MarkFailed(ctx, objectID)
	if err != nil {
		s.logg.Error(ctx, "mark transaction failed after fee refund", err)
		return metrics.OutcomeFailed
	}
	if !changed {
		return metrics.OutcomeSkipped
	}
	return metrics.OutcomeProcessed
}

// handleIntentSucceeded covers Connect setups that deliver the intent event
// instead of (or before) the fee event. Same ledger path, same key.
func (s *Service) handleIntentSucceeded(ctx context.Context, event *stripe.Event) (string, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.logg.Error(ctx, "decode payment intent event", err)
		return metrics.OutcomeMalformed, nil
	}

	meta, err := checkout.DecodePurchaseMetadata(intent.Metadata)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "payment_intent_id", intent.ID), "payment intent without purchase metadata, acknowledging")
		return metrics.OutcomeMalformed, nil
	}

	input := ledger.RecordInput{
		StripeObjectID:        intent.ID,
		ListingID:             meta.ListingID,
		BuyerUserID:           meta.BuyerID,
		SellerUserID:          meta.SellerID,
		SellerStripeAccountID: event.Account,
		AmountCents:           intent.Amount,
		Currency:              string(intent.Currency),
	}
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		input.StripeChargeID = intent.LatestCharge.ID
	}

	if _, err := s.ledger.RecordSucceeded(ctx, input); err != nil {
		return metrics.OutcomeFailed, err
	}

	if err := s.listings.MarkSold(ctx, meta.ListingID); err != nil {
		s.logg.Error(s.logg.WithListingID(ctx, meta.ListingID.String()), "mark listing sold", err)
	}
	return metrics.OutcomeProcessed, nil
}

// handleIntentFailed records the failure and releases the optimistic hold.
func (s *Service) handleIntentFailed(ctx context.Context, event *stripe.Event) string {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.logg.Error(ctx, "decode payment intent event", err)
		return metrics.OutcomeMalformed
	}

	meta, metaErr := checkout.DecodePurchaseMetadata(intent.Metadata)
	if metaErr != nil {
		if _, err := s.ledger.MarkFailed(ctx, intent.ID); err != nil {
			s.logg.Error(ctx, "mark transaction failed", err)
		}
		return metrics.OutcomeProcessed
	}

	if _, err := s.ledger.RecordFailed(ctx, ledger.RecordInput{
		StripeObjectID:        intent.ID,
		ListingID:             meta.ListingID,
		BuyerUserID:           meta.BuyerID,
		SellerUserID:          meta.SellerID,
		SellerStripeAccountID: event.Account,
		AmountCents:           intent.Amount,
		Currency:              string(intent.Currency),
	}); err != nil {
		s.logg.Error(ctx, "record failed transaction", err)
	}

	if err := s.listings.MarkAvailable(ctx, meta.ListingID); err != nil {
		s.logg.Error(s.logg.WithListingID(ctx, meta.ListingID.String()), "release listing after failed payment", err)
	}
	return metrics.OutcomeProcessed
}

// handleSessionExpired releases the hold left by an abandoned checkout.
func (s *Service) handleSessionExpired(ctx context.Context, event *stripe.Event) string {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.logg.Error(ctx, "decode checkout session event", err)
		return metrics.OutcomeMalformed
	}

	objectID := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		objectID = session.PaymentIntent.ID
	}
	if _, err := s.ledger.MarkCanceled(ctx, objectID); err != nil {
		s.logg.Error(ctx, "cancel transaction for expired session", err)
	}

	if meta, err := checkout.DecodePurchaseMetadata(session.Metadata); err == nil {
		if err := s.listings.MarkAvailable(ctx, meta.ListingID); err != nil {
			s.logg.Error(s.logg.WithListingID(ctx, meta.ListingID.String()), "release listing after expired session", err)
		}
	}
	return metrics.OutcomeProcessed
}

// handleAccountUpdated keeps seller capability flags in sync with Stripe.
func (s *Service) handleAccountUpdated(ctx context.Context, event *stripe.Event) string {
	var acct stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
		s.logg.Error(ctx, "decode account event", err)
		return metrics.OutcomeMalformed
	}

	accountID := acct.ID
	if accountID == "" {
		accountID = event.Account
	}
	if accountID == "" {
		return metrics.OutcomeMalformed
	}

	if err := s.sellers.SyncAccount(ctx, accountID, acct.ChargesEnabled, acct.PayoutsEnabled); err != nil {
		s.logg.Error(ctx, "sync seller capability flags", err)
		return metrics.OutcomeFailed
	}
	return metrics.OutcomeProcessed
}

func (s *Service) sendReceipt(ctx context.Context, ch *stripe.Charge, meta *checkout.PurchaseMetadata) {
	if s.mailer == nil {
		return
	}
	email := ""
	if ch.BillingDetails != nil {
		email = ch.BillingDetails.Email
	}
	if email == "" {
		email = ch.ReceiptEmail
	}
	if email == "" {
		return
	}

	if err := s.mailer.SendPurchaseReceipt(ctx, mailer.PurchaseReceipt{
		To:           email,
		ListingTitle: ch.Description,
		AmountCents:  ch.Amount,
		Currency:     string(ch.Currency),
	}); err != nil {
		s.logg.Error(s.logg.WithListingID(ctx, meta.ListingID.String()), "send purchase receipt", err)
	}
}
