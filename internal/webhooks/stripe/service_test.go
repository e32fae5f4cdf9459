package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/relistco/relist-backend/internal/checkout"
	"github.com/relistco/relist-backend/internal/ledger"
	"github.com/relistco/relist-backend/pkg/db/models"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
	"github.com/relistco/relist-backend/pkg/mailer"
)

type stubLedger struct {
	succeeded    []ledger.RecordInput
	failed       []ledger.RecordInput
	markedFailed []string
	canceled     []string
	succeededErr error
}

func (s *stubLedger) RecordSucceeded(ctx context.Context, input ledger.RecordInput) (*models.PaymentTransaction, error) {
	if s.succeededErr != nil {
		return nil, s.succeededErr
	}
	s.succeeded = append(s.succeeded, input)
	return &models.PaymentTransaction{StripeObjectID: input.StripeObjectID}, nil
}

func (s *stubLedger) RecordFailed(ctx context.Context, input ledger.RecordInput) (*models.PaymentTransaction, error) {
	s.failed = append(s.failed, input)
	return &models.PaymentTransaction{StripeObjectID: input.StripeObjectID}, nil
}

func (s *stubLedger) MarkFailed(ctx context.Context, stripeObjectID string) (bool, error) {
	s.markedFailed = append(s.markedFailed, stripeObjectID)
	return true, nil
}

func (s *stubLedger) MarkCanceled(ctx context.Context, stripeObjectID string) (bool, error) {
	s.canceled = append(s.canceled, stripeObjectID)
	return true, nil
}

type stubListings struct {
	sold     []uuid.UUID
	released []uuid.UUID
	soldErr  error
}

func (s *stubListings) MarkSold(ctx context.Context, id uuid.UUID) error {
	if s.soldErr != nil {
		return s.soldErr
	}
	s.sold = append(s.sold, id)
	return nil
}

func (s *stubListings) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	s.released = append(s.released, id)
	return nil
}

type stubSellers struct {
	synced map[string][2]bool
}

func (s *stubSellers) SyncAccount(ctx context.Context, stripeAccountID string, chargesEnabled, payoutsEnabled bool) error {
	if s.synced == nil {
		s.synced = map[string][2]bool{}
	}
	s.synced[stripeAccountID] = [2]bool{chargesEnabled, payoutsEnabled}
	return nil
}

type stubChargeClient struct {
	charges map[string]*stripe.Charge
	getErr  error
	account string
}

func (s *stubChargeClient) GetCharge(ctx context.Context, id string, params *stripe.ChargeParams) (*stripe.Charge, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if params != nil && params.StripeAccount != nil {
		s.account = *params.StripeAccount
	}
	if ch, ok := s.charges[id]; ok {
		return ch, nil
	}
	return nil, fmt.Errorf("no such charge %s", id)
}

type stubMailer struct {
	receipts []mailer.PurchaseReceipt
}

func (s *stubMailer) SendPurchaseReceipt(ctx context.Context, receipt mailer.PurchaseReceipt) error {
	s.receipts = append(s.receipts, receipt)
	return nil
}

func (s *stubMailer) SendListingMessage(ctx context.Context, msg mailer.ListingMessage) error {
	return nil
}

type fixture struct {
	ledger   *stubLedger
	listings *stubListings
	sellers  *stubSellers
	stripe   *stubChargeClient
	mailer   *stubMailer
	meta     checkout.PurchaseMetadata
}

func newFixture() *fixture {
	return &fixture{
		ledger:   &stubLedger{},
		listings: &stubListings{},
		sellers:  &stubSellers{},
		stripe:   &stubChargeClient{charges: map[string]*stripe.Charge{}},
		mailer:   &stubMailer{},
		meta: checkout.PurchaseMetadata{
			ListingID: uuid.New(),
			BuyerID:   uuid.New(),
			SellerID:  uuid.New(),
		},
	}
}

func (f *fixture) service(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Ledger:   f.ledger,
		Listings: f.listings,
		Sellers:  f.sellers,
		Stripe:   f.stripe,
		Mailer:   f.mailer,
		Logger:   logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func event(t *testing.T, eventType stripe.EventType, payload any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func (f *fixture) feeCreatedEvent(t *testing.T) *stripe.Event {
	f.stripe.charges["ch_1"] = &stripe.Charge{
		ID:            "ch_1",
		Amount:        1999,
		Currency:      stripe.CurrencyUSD,
		Metadata:      f.meta.Encode(),
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
		BillingDetails: &stripe.ChargeBillingDetails{
			Email: "buyer@example.com",
		},
		Description: "vintage camera",
	}
	return event(t, stripe.EventTypeApplicationFeeCreated, map[string]any{
		"id":      "fee_1",
		"amount":  58,
		"charge":  "ch_1",
		"account": "acct_seller",
	})
}

func TestFeeCreatedRecordsLedgerAndMarksSold(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	if err := svc.HandleEvent(context.Background(), f.feeCreatedEvent(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.stripe.account != "acct_seller" {
		t.Fatalf("charge fetch must target the connected account, got %q", f.stripe.account)
	}
	if len(f.ledger.succeeded) != 1 {
		t.Fatalf("expected one ledger write, got %d", len(f.ledger.succeeded))
	}
	row := f.ledger.succeeded[0]
	if row.StripeObjectID != "pi_1" {
		t.Fatalf("ledger must be keyed by the payment intent, got %q", row.StripeObjectID)
	}
	if row.StripeChargeID != "ch_1" || row.FeeCents != 58 || row.AmountCents != 1999 {
		t.Fatalf("unexpected ledger row %+v", row)
	}
	if row.ListingID != f.meta.ListingID || row.BuyerUserID != f.meta.BuyerID || row.SellerUserID != f.meta.SellerID {
		t.Fatal("purchase metadata must flow into the ledger row")
	}
	if len(f.listings.sold) != 1 || f.listings.sold[0] != f.meta.ListingID {
		t.Fatal("listing must be marked sold")
	}
	if len(f.mailer.receipts) != 1 || f.mailer.receipts[0].To != "buyer@example.com" {
		t.Fatal("receipt must go to the charge's billing email")
	}
}

func TestFeeCreatedWithoutChargeRefAcks(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	evt := event(t, stripe.EventTypeApplicationFeeCreated, map[string]any{"id": "fee_1", "amount": 58})
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("missing charge ref must be acknowledged, got %v", err)
	}
	if len(f.ledger.succeeded) != 0 || len(f.listings.sold) != 0 {
		t.Fatal("nothing may be recorded without a charge reference")
	}
}

func TestFeeCreatedChargeFetchFailurePropagates(t *testing.T) {
	f := newFixture()
	f.stripe.getErr = fmt.Errorf("stripe down")
	svc := f.service(t)

	err := svc.HandleEvent(context.Background(), f.feeCreatedEvent(t))
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error so the delivery is retried, got %v", err)
	}
}

func TestFeeCreatedWithoutMetadataAcks(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	evt := f.feeCreatedEvent(t)
	f.stripe.charges["ch_1"].Metadata = map[string]string{"unrelated": "x"}

	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("missing metadata must be acknowledged, got %v", err)
	}
	if len(f.ledger.succeeded) != 0 {
		t.Fatal("no ledger write without metadata")
	}
}

func TestFeeCreatedLedgerFailurePropagates(t *testing.T) {
	f := newFixture()
	f.ledger.succeededErr = pkgerrors.New(pkgerrors.CodeInternal, "db down")
	svc := f.service(t)

	if err := svc.HandleEvent(context.Background(), f.feeCreatedEvent(t)); err == nil {
		t.Fatal("ledger failure must propagate so Stripe redelivers")
	}
	if len(f.listings.sold) != 0 {
		t.Fatal("listing must not be sold when the ledger write failed")
	}
}

func TestFeeCreatedMarkSoldFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	f.listings.soldErr = pkgerrors.New(pkgerrors.CodeInternal, "db down")
	svc := f.service(t)

	if err := svc.HandleEvent(context.Background(), f.feeCreatedEvent(t)); err != nil {
		t.Fatalf("mark-sold failure is best-effort, got %v", err)
	}
	if len(f.ledger.succeeded) != 1 {
		t.Fatal("ledger write is still the primary effect")
	}
}

func TestFeeRefundedMarksFailedByIntent(t *testing.T) {
	f := newFixture()
	f.stripe.charges["ch_1"] = &stripe.Charge{
		ID:            "ch_1",
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
	}
	svc := f.service(t)

	evt := event(t, stripe.EventTypeApplicationFeeRefunded, map[string]any{
		"id":      "fee_1",
		"charge":  "ch_1",
		"account": "acct_seller",
	})
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("refund handling must be swallowed, got %v", err)
	}
	if len(f.ledger.markedFailed) != 1 || f.ledger.markedFailed[0] != "pi_1" {
		t.Fatalf("expected pi_1 marked failed, got %v", f.ledger.markedFailed)
	}
}

func TestFeeRefundedFallsBackToFeeID(t *testing.T) {
	f := newFixture()
	f.stripe.getErr = fmt.Errorf("stripe down")
	svc := f.service(t)

	evt := event(t, stripe.EventTypeApplicationFeeRefunded, map[string]any{
		"id":      "fee_1",
		"charge":  "ch_1",
		"account": "acct_seller",
	})
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("refund handling must be swallowed, got %v", err)
	}
	if len(f.ledger.markedFailed) != 1 || f.ledger.markedFailed[0] != "fee_1" {
		t.Fatalf("expected fee_1 marked failed, got %v", f.ledger.markedFailed)
	}
}

func TestIntentSucceededDelegatesToSuccessPath(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	evt := event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id":            "pi_1",
		"amount":        1999,
		"currency":      "usd",
		"metadata":      f.meta.Encode(),
		"latest_charge": "ch_1",
	})
	evt.Account = "acct_seller"

	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ledger.succeeded) != 1 {
		t.Fatalf("expected one ledger write, got %d", len(f.ledger.succeeded))
	}
	row := f.ledger.succeeded[0]
	if row.StripeObjectID != "pi_1" || row.StripeChargeID != "ch_1" || row.SellerStripeAccountID != "acct_seller" {
		t.Fatalf("unexpected ledger row %+v", row)
	}
	if len(f.listings.sold) != 1 {
		t.Fatal("listing must be marked sold")
	}
}

func TestIntentFailedReleasesListing(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	evt := event(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{
		"id":       "pi_1",
		"amount":   1999,
		"currency": "usd",
		"metadata": f.meta.Encode(),
	})
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("failed intents are swallowed, got %v", err)
	}
	if len(f.ledger.failed) != 1 || f.ledger.failed[0].StripeObjectID != "pi_1" {
		t.Fatal("expected a failed ledger row")
	}
	if len(f.listings.released) != 1 || f.listings.released[0] != f.meta.ListingID {
		t.Fatal("listing hold must be released")
	}
}

func TestSessionExpiredCancelsAndReleases(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	evt := event(t, stripe.EventTypeCheckoutSessionExpired, map[string]any{
		"id":             "cs_1",
		"payment_intent": "pi_1",
		"metadata":       f.meta.Encode(),
	})
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("expired sessions are swallowed, got %v", err)
	}
	if len(f.ledger.canceled) != 1 || f.ledger.canceled[0] != "pi_1" {
		t.Fatalf("expected pi_1 canceled, got %v", f.ledger.canceled)
	}
	if len(f.listings.released) != 1 {
		t.Fatal("listing hold must be released")
	}
}

func TestAccountUpdatedSyncsFlags(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	evt := event(t, stripe.EventTypeAccountUpdated, map[string]any{
		"id":              "acct_seller",
		"charges_enabled": true,
		"payouts_enabled": false,
	})
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flags, ok := f.sellers.synced["acct_seller"]
	if !ok || flags != [2]bool{true, false} {
		t.Fatalf("unexpected sync %v", f.sellers.synced)
	}
}

func TestUnknownEventTypeIsAcked(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	evt := event(t, "customer.created", map[string]any{"id": "cus_1"})
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("unknown events must be acknowledged, got %v", err)
	}
}

func TestReplayedFeeEventConvergesOnSameRow(t *testing.T) {
	f := newFixture()
	svc := f.service(t)
	evt := f.feeCreatedEvent(t)

	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("replay must succeed: %v", err)
	}
	if len(f.ledger.succeeded) != 2 {
		t.Fatalf("both deliveries reach the ledger upsert, got %d", len(f.ledger.succeeded))
	}
	if f.ledger.succeeded[0].StripeObjectID != f.ledger.succeeded[1].StripeObjectID {
		t.Fatal("replays must target the same ledger key")
	}
}
