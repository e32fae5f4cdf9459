package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/relistco/relist-backend/api/responses"
	"github.com/relistco/relist-backend/api/validators"
	"github.com/relistco/relist-backend/internal/checkout"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
)

type checkoutRequest struct {
	ListingID  uuid.UUID `json:"listing_id" validate:"required"`
	SuccessURL string    `json:"success_url" validate:"required,url"`
	CancelURL  string    `json:"cancel_url" validate:"required,url"`
}

// Checkout opens a hosted payment session for the authenticated buyer.
func Checkout(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), checkout.CreateSessionInput{
			ListingID:  payload.ListingID,
			BuyerID:    buyerID,
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
