package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/relistco/relist-backend/api/middleware"
	"github.com/relistco/relist-backend/api/responses"
	"github.com/relistco/relist-backend/api/validators"
	"github.com/relistco/relist-backend/internal/sellers"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
)

type createSellerAccountRequest struct {
	Email      string `json:"email" validate:"omitempty,email"`
	RefreshURL string `json:"refresh_url" validate:"omitempty,url"`
	ReturnURL  string `json:"return_url" validate:"omitempty,url"`
}

type createSellerAccountResponse struct {
	StripeAccountID     string `json:"stripe_account_id"`
	OnboardingURL       string `json:"onboarding_url,omitempty"`
	ChargesEnabled      bool   `json:"charges_enabled"`
	PayoutsEnabled      bool   `json:"payouts_enabled"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

type onboardingLinkRequest struct {
	RefreshURL string `json:"refresh_url" validate:"required,url"`
	ReturnURL  string `json:"return_url" validate:"required,url"`
}

// CreateSellerAccount provisions the caller's connected payment account. When
// redirect URLs are supplied the response also carries a fresh onboarding URL.
func CreateSellerAccount(svc *sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "seller service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createSellerAccountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := payload.Email
		if email == "" {
			email = middleware.EmailFromContext(r.Context())
		}

		acct, err := svc.CreateAccount(r.Context(), userID, email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := createSellerAccountResponse{
			StripeAccountID:     acct.StripeAccountID,
			ChargesEnabled:      acct.ChargesEnabled,
			PayoutsEnabled:      acct.PayoutsEnabled,
			OnboardingCompleted: acct.OnboardingCompleted,
		}

		if payload.RefreshURL != "" && payload.ReturnURL != "" {
			url, err := svc.OnboardingLink(r.Context(), userID, sellers.OnboardingLinkInput{
				RefreshURL: payload.RefreshURL,
				ReturnURL:  payload.ReturnURL,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			resp.OnboardingURL = url
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// SellerOnboardingLink mints a fresh hosted-onboarding URL.
func SellerOnboardingLink(svc *sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "seller service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload onboardingLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := svc.OnboardingLink(r.Context(), userID, sellers.OnboardingLinkInput{
			RefreshURL: payload.RefreshURL,
			ReturnURL:  payload.ReturnURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}

// SellerAccountStatus reconciles and returns the caller's payment readiness.
func SellerAccountStatus(svc *sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "seller service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.RefreshStatus(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

// SellerDashboardLink mints an express-dashboard login link for the caller.
func SellerDashboardLink(svc *sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "seller service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := svc.DashboardLink(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}

// DeleteSellerAccount tears down the caller's connected account.
func DeleteSellerAccount(svc *sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "seller service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteAccount(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func authedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid subject")
	}
	return id, nil
}
