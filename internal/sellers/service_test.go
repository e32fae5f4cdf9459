package sellers

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/db/models"
	"github.com/relistco/relist-backend/pkg/enums"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
)

type stubRepo struct {
	byUserID   map[uuid.UUID]*models.SellerAccount
	byStripeID map[string]*models.SellerAccount
	created    []*models.SellerAccount
	updated    []*models.SellerAccount
	deleted    []uuid.UUID
	findErr    error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		byUserID:   map[uuid.UUID]*models.SellerAccount{},
		byStripeID: map[string]*models.SellerAccount{},
	}
}

func (s *stubRepo) add(acct *models.SellerAccount) {
	s.byUserID[acct.UserID] = acct
	s.byStripeID[acct.StripeAccountID] = acct
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, acct *models.SellerAccount) error {
	s.created = append(s.created, acct)
	s.add(acct)
	return nil
}

func (s *stubRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerAccount, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if acct, ok := s.byUserID[userID]; ok {
		return acct, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByStripeAccountID(ctx context.Context, stripeAccountID string) (*models.SellerAccount, error) {
	if acct, ok := s.byStripeID[stripeAccountID]; ok {
		return acct, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) Update(ctx context.Context, acct *models.SellerAccount) error {
	s.updated = append(s.updated, acct)
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubStripeClient struct {
	createAccountFn func(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error)
	getAccountFn    func(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error)
	deleteAccountFn func(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error)
	accountLinkFn   func(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
	loginLinkFn     func(ctx context.Context, params *stripe.LoginLinkParams) (*stripe.LoginLink, error)
}

func (s *stubStripeClient) CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
	if s.createAccountFn != nil {
		return s.createAccountFn(ctx, params)
	}
	return &stripe.Account{ID: "acct_stub"}, nil
}

func (s *stubStripeClient) GetAccount(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
	if s.getAccountFn != nil {
		return s.getAccountFn(ctx, id, params)
	}
	return &stripe.Account{ID: id}, nil
}

func (s *stubStripeClient) DeleteAccount(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
	if s.deleteAccountFn != nil {
		return s.deleteAccountFn(ctx, id, params)
	}
	return &stripe.Account{ID: id, Deleted: true}, nil
}

func (s *stubStripeClient) CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	if s.accountLinkFn != nil {
		return s.accountLinkFn(ctx, params)
	}
	return &stripe.AccountLink{URL: "https://connect.stripe.com/setup/s/stub"}, nil
}

func (s *stubStripeClient) CreateLoginLink(ctx context.Context, params *stripe.LoginLinkParams) (*stripe.LoginLink, error) {
	if s.loginLinkFn != nil {
		return s.loginLinkFn(ctx, params)
	}
	return &stripe.LoginLink{URL: "https://connect.stripe.com/express/stub"}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "sellers-test", Output: io.Discard})
}

func newTestService(t *testing.T, repo Repository, client StripeAccountClient) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		Stripe:      client,
		AccountType: enums.AccountTypeExpress,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateAccountPersistsWithFlagsDisabled(t *testing.T) {
	repo := newStubRepo()
	client := &stubStripeClient{
		createAccountFn: func(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
			if params.Type == nil || *params.Type != "express" {
				t.Fatalf("expected express account type, got %v", params.Type)
			}
			if params.Capabilities == nil || params.Capabilities.CardPayments == nil || params.Capabilities.Transfers == nil {
				t.Fatal("expected card_payments and transfers capabilities to be requested")
			}
			return &stripe.Account{ID: "acct_123"}, nil
		},
	}
	svc := newTestService(t, repo, client)

	acct, err := svc.CreateAccount(context.Background(), uuid.New(), "seller@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.StripeAccountID != "acct_123" {
		t.Fatalf("unexpected stripe account id %q", acct.StripeAccountID)
	}
	if acct.ChargesEnabled || acct.PayoutsEnabled || acct.OnboardingCompleted {
		t.Fatal("new accounts must start with all capability flags disabled")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one persisted account, got %d", len(repo.created))
	}
}

func TestCreateAccountIsIdempotentPerUser(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	existing := &models.SellerAccount{ID: uuid.New(), UserID: userID, StripeAccountID: "acct_existing"}
	repo.add(existing)

	called := false
	client := &stubStripeClient{
		createAccountFn: func(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
			called = true
			return nil, fmt.Errorf("should not be called")
		},
	}
	svc := newTestService(t, repo, client)

	acct, err := svc.CreateAccount(context.Background(), userID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct != existing {
		t.Fatal("expected the existing account to be returned")
	}
	if called {
		t.Fatal("stripe must not be called when the account already exists")
	}
}

func TestCreateAccountSurfacesStripeFailure(t *testing.T) {
	repo := newStubRepo()
	client := &stubStripeClient{
		createAccountFn: func(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
			return nil, fmt.Errorf("stripe down")
		},
	}
	svc := newTestService(t, repo, client)

	_, err := svc.CreateAccount(context.Background(), uuid.New(), "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("nothing may be persisted when stripe fails")
	}
}

func TestRefreshStatusWithoutAccountSkipsStripe(t *testing.T) {
	repo := newStubRepo()
	client := &stubStripeClient{
		getAccountFn: func(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
			t.Fatal("stripe must not be called for unconnected users")
			return nil, nil
		},
	}
	svc := newTestService(t, repo, client)

	status, err := svc.RefreshStatus(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Connected {
		t.Fatal("expected not-connected status")
	}
}

func TestRefreshStatusHealsDriftedFlags(t *testing.T) {
	repo := newStubRepo()
	acct := &models.SellerAccount{ID: uuid.New(), UserID: uuid.New(), StripeAccountID: "acct_drift"}
	repo.add(acct)

	client := &stubStripeClient{
		getAccountFn: func(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
			return &stripe.Account{ID: id, ChargesEnabled: true, PayoutsEnabled: true}, nil
		},
	}
	svc := newTestService(t, repo, client)

	status, err := svc.RefreshStatus(context.Background(), acct.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.ChargesEnabled || !status.PayoutsEnabled || !status.OnboardingCompleted {
		t.Fatalf("expected healed status, got %+v", status)
	}
	if len(repo.updated) != 1 {
		t.Fatalf("expected one persisted update, got %d", len(repo.updated))
	}
}

func TestRefreshStatusInSyncDoesNotWrite(t *testing.T) {
	repo := newStubRepo()
	acct := &models.SellerAccount{
		ID:                  uuid.New(),
		UserID:              uuid.New(),
		StripeAccountID:     "acct_ok",
		ChargesEnabled:      true,
		PayoutsEnabled:      true,
		OnboardingCompleted: true,
	}
	repo.add(acct)

	client := &stubStripeClient{
		getAccountFn: func(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
			return &stripe.Account{ID: id, ChargesEnabled: true, PayoutsEnabled: true}, nil
		},
	}
	svc := newTestService(t, repo, client)

	if _, err := svc.RefreshStatus(context.Background(), acct.UserID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.updated) != 0 {
		t.Fatal("in-sync flags must not trigger a write")
	}
}

func TestRefreshStatusStripeFailureIsDependencyError(t *testing.T) {
	repo := newStubRepo()
	acct := &models.SellerAccount{ID: uuid.New(), UserID: uuid.New(), StripeAccountID: "acct_err"}
	repo.add(acct)

	client := &stubStripeClient{
		getAccountFn: func(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
			return nil, fmt.Errorf("stripe down")
		},
	}
	svc := newTestService(t, repo, client)

	_, err := svc.RefreshStatus(context.Background(), acct.UserID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestSyncAccountIgnoresUnknownAccounts(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubStripeClient{})
	if err := svc.SyncAccount(context.Background(), "acct_unknown", true, true); err != nil {
		t.Fatalf("unknown accounts must be ignored, got %v", err)
	}
}

func TestSyncAccountUpdatesFlags(t *testing.T) {
	repo := newStubRepo()
	acct := &models.SellerAccount{ID: uuid.New(), UserID: uuid.New(), StripeAccountID: "acct_sync"}
	repo.add(acct)
	svc := newTestService(t, repo, &stubStripeClient{})

	if err := svc.SyncAccount(context.Background(), "acct_sync", true, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acct.ChargesEnabled || acct.PayoutsEnabled {
		t.Fatalf("flags not applied: %+v", acct)
	}
	if acct.OnboardingCompleted {
		t.Fatal("onboarding requires both capability flags")
	}
}

func TestOnboardingLinkRequiresAccount(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubStripeClient{})
	_, err := svc.OnboardingLink(context.Background(), uuid.New(), OnboardingLinkInput{
		RefreshURL: "https://relist.co/onboarding/refresh",
		ReturnURL:  "https://relist.co/onboarding/return",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDeleteAccountRemovesRemoteThenLocal(t *testing.T) {
	repo := newStubRepo()
	acct := &models.SellerAccount{ID: uuid.New(), UserID: uuid.New(), StripeAccountID: "acct_del"}
	repo.add(acct)

	var deletedRemote string
	client := &stubStripeClient{
		deleteAccountFn: func(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
			deletedRemote = id
			return &stripe.Account{ID: id, Deleted: true}, nil
		},
	}
	svc := newTestService(t, repo, client)

	if err := svc.DeleteAccount(context.Background(), acct.UserID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deletedRemote != "acct_del" {
		t.Fatalf("expected remote delete of acct_del, got %q", deletedRemote)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != acct.ID {
		t.Fatalf("expected local delete of %s", acct.ID)
	}
}

func TestDeleteAccountKeepsLocalRowOnStripeFailure(t *testing.T) {
	repo := newStubRepo()
	acct := &models.SellerAccount{ID: uuid.New(), UserID: uuid.New(), StripeAccountID: "acct_keep"}
	repo.add(acct)

	client := &stubStripeClient{
		deleteAccountFn: func(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
			return nil, fmt.Errorf("stripe down")
		},
	}
	svc := newTestService(t, repo, client)

	err := svc.DeleteAccount(context.Background(), acct.UserID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Fatal("local row must survive a failed remote delete")
	}
}

func TestReady(t *testing.T) {
	repo := newStubRepo()
	ready := &models.SellerAccount{
		ID:                  uuid.New(),
		UserID:              uuid.New(),
		StripeAccountID:     "acct_ready",
		ChargesEnabled:      true,
		PayoutsEnabled:      true,
		OnboardingCompleted: true,
	}
	notReady := &models.SellerAccount{ID: uuid.New(), UserID: uuid.New(), StripeAccountID: "acct_not"}
	repo.add(ready)
	repo.add(notReady)
	svc := newTestService(t, repo, &stubStripeClient{})

	if _, ok, err := svc.Ready(context.Background(), ready.UserID); err != nil || !ok {
		t.Fatalf("expected ready seller, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := svc.Ready(context.Background(), notReady.UserID); err != nil || ok {
		t.Fatalf("expected not-ready seller, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := svc.Ready(context.Background(), uuid.New()); err != nil || ok {
		t.Fatalf("expected missing seller to be not ready, got ok=%v err=%v", ok, err)
	}
}
