package sellers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/db/models"
	"github.com/relistco/relist-backend/pkg/enums"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
)

// ServiceParams groups dependencies for the seller account service.
type ServiceParams struct {
	Repo        Repository
	Stripe      StripeAccountClient
	AccountType enums.AccountType
	Logger      *logger.Logger
}

// Service manages seller payment accounts and their onboarding lifecycle.
type Service struct {
	repo        Repository
	stripe      StripeAccountClient
	accountType enums.AccountType
	logg        *logger.Logger
}

// AccountStatus is the reconciled view of a seller's payment readiness.
type AccountStatus struct {
	Connected           bool   `json:"connected"`
	StripeAccountID     string `json:"stripe_account_id,omitempty"`
	ChargesEnabled      bool   `json:"charges_enabled"`
	PayoutsEnabled      bool   `json:"payouts_enabled"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

// OnboardingLinkInput carries the redirect URLs for a hosted onboarding session.
type OnboardingLinkInput struct {
	RefreshURL string
	ReturnURL  string
}

// NewService builds a seller account service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Stripe == nil {
		return nil, errors.New("stripe client is required")
	}
	if !params.AccountType.IsValid() {
		return nil, errors.New("valid account type is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:        params.Repo,
		stripe:      params.Stripe,
		accountType: params.AccountType,
		logg:        params.Logger,
	}, nil
}

// CreateAccount provisions a connected Stripe account for the user. Calling it
// again for a user that already has one returns the existing record unchanged.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, email string) (*models.SellerAccount, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller account")
	}
	if existing != nil {
		return existing, nil
	}

	params := &stripe.AccountParams{
		Type: stripe.String(s.accountType.String()),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}

	remote, err := s.stripe.CreateAccount(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe account")
	}

	acct := &models.SellerAccount{
		UserID:          userID,
		StripeAccountID: remote.ID,
		AccountType:     s.accountType,
		ChargesEnabled:  remote.ChargesEnabled,
		PayoutsEnabled:  remote.PayoutsEnabled,
	}
	acct.Recompute()

	if err := s.repo.Create(ctx, acct); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist seller account")
	}

	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "seller account created")
	return acct, nil
}

// OnboardingLink returns a fresh hosted-onboarding URL for the user's account.
// Links expire quickly on Stripe's side, so each call mints a new one.
func (s *Service) OnboardingLink(ctx context.Context, userID uuid.UUID, input OnboardingLinkInput) (string, error) {
	if input.RefreshURL == "" || input.ReturnURL == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refresh and return urls are required")
	}

	acct, err := s.requireAccount(ctx, userID)
	if err != nil {
		return "", err
	}

	link, err := s.stripe.CreateAccountLink(ctx, &stripe.AccountLinkParams{
		Account:    stripe.String(acct.StripeAccountID),
		RefreshURL: stripe.String(input.RefreshURL),
		ReturnURL:  stripe.String(input.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create onboarding link")
	}
	return link.URL, nil
}

// RefreshStatus reconciles the local capability flags against Stripe and
// returns the reconciled status. A user without an account is reported as not
// connected without touching Stripe.
func (s *Service) RefreshStatus(ctx context.Context, userID uuid.UUID) (*AccountStatus, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	acct, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &AccountStatus{Connected: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller account")
	}

	remote, err := s.stripe.GetAccount(ctx, acct.StripeAccountID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe account")
	}

	if err := s.syncFlags(ctx, acct, remote.ChargesEnabled, remote.PayoutsEnabled); err != nil {
		return nil, err
	}

	return statusFromAccount(acct), nil
}

// SyncAccount applies capability flags pushed by Stripe for the given
// connected account. Unknown accounts are ignored.
func (s *Service) SyncAccount(ctx context.Context, stripeAccountID string, chargesEnabled, payoutsEnabled bool) error {
	if stripeAccountID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe account id is required")
	}

	acct, err := s.repo.FindByStripeAccountID(ctx, stripeAccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller account")
	}

	return s.syncFlags(ctx, acct, chargesEnabled, payoutsEnabled)
}

// DashboardLink mints an express-dashboard login link for the seller.
func (s *Service) DashboardLink(ctx context.Context, userID uuid.UUID) (string, error) {
	acct, err := s.requireAccount(ctx, userID)
	if err != nil {
		return "", err
	}

	link, err := s.stripe.CreateLoginLink(ctx, &stripe.LoginLinkParams{
		Account: stripe.String(acct.StripeAccountID),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create login link")
	}
	return link.URL, nil
}

// DeleteAccount removes the connected account on Stripe and the local record.
// Admin-only; the remote delete happens first so a failure leaves the local
// row intact for retry.
func (s *Service) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	acct, err := s.requireAccount(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.stripe.DeleteAccount(ctx, acct.StripeAccountID, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stripe account")
	}

	if err := s.repo.Delete(ctx, acct.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete seller account")
	}

	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "seller account deleted")
	return nil
}

// Ready reports whether the user can accept payments right now, using the
// locally stored flags only.
func (s *Service) Ready(ctx context.Context, userID uuid.UUID) (*models.SellerAccount, bool, error) {
	acct, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller account")
	}
	return acct, acct.ChargesEnabled && acct.OnboardingCompleted, nil
}

func (s *Service) requireAccount(ctx context.Context, userID uuid.UUID) (*models.SellerAccount, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	acct, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller account")
	}
	return acct, nil
}

func (s *Service) syncFlags(ctx context.Context, acct *models.SellerAccount, chargesEnabled, payoutsEnabled bool) error {
	if acct.ChargesEnabled == chargesEnabled && acct.PayoutsEnabled == payoutsEnabled {
		return nil
	}

	acct.ChargesEnabled = chargesEnabled
	acct.PayoutsEnabled = payoutsEnabled
	acct.Recompute()

	if err := s.repo.Update(ctx, acct); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist capability flags")
	}

	s.logg.Info(s.logg.WithUserID(ctx, acct.UserID.String()), "seller capability flags synced")
	return nil
}

func statusFromAccount(acct *models.SellerAccount) *AccountStatus {
	return &AccountStatus{
		Connected:           true,
		StripeAccountID:     acct.StripeAccountID,
		ChargesEnabled:      acct.ChargesEnabled,
		PayoutsEnabled:      acct.PayoutsEnabled,
		OnboardingCompleted: acct.OnboardingCompleted,
	}
}
