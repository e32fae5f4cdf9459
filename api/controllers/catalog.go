package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relistco/relist-backend/api/responses"
	"github.com/relistco/relist-backend/api/validators"
	"github.com/relistco/relist-backend/internal/catalog"
	"github.com/relistco/relist-backend/internal/listings"
	"github.com/relistco/relist-backend/pkg/db/models"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
)

type setupProductRequest struct {
	Title      string `json:"title" validate:"required,min=1,max=200"`
	UnitAmount int64  `json:"unit_amount_cents" validate:"required,gt=0"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

type updatePriceRequest struct {
	UnitAmount int64  `json:"unit_amount_cents" validate:"required,gt=0"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type listingProductResponse struct {
	ListingID       uuid.UUID `json:"listing_id"`
	StripeProductID string    `json:"stripe_product_id"`
	StripePriceID   string    `json:"stripe_price_id"`
	Active          bool      `json:"active"`
}

// SetupListingProduct creates the Stripe product and initial price for one of
// the caller's listings.
func SetupListingProduct(svc *catalog.Service, listingSvc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || listingSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		userID, listingID, err := authedListingOwner(r, listingSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setupProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.SetupProduct(r.Context(), catalog.SetupProductInput{
			ListingID:    listingID,
			SellerUserID: userID,
			Title:        payload.Title,
			UnitAmount:   payload.UnitAmount,
			Currency:     payload.Currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newListingProductResponse(product))
	}
}

// UpdateListingPrice rotates the active Stripe price for one of the caller's
// listings.
func UpdateListingPrice(svc *catalog.Service, listingSvc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || listingSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		_, listingID, err := authedListingOwner(r, listingSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updatePriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdatePrice(r.Context(), listingID, payload.UnitAmount, payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newListingProductResponse(product))
	}
}

// SetListingActive toggles whether the listing's product can be purchased.
func SetListingActive(svc *catalog.Service, listingSvc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || listingSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		_, listingID, err := authedListingOwner(r, listingSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.SetActive(r.Context(), listingID, *payload.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newListingProductResponse(product))
	}
}

// authedListingOwner resolves the listing from the path and requires the
// caller to be its seller.
func authedListingOwner(r *http.Request, listingSvc *listings.Service) (uuid.UUID, uuid.UUID, error) {
	userID, err := authedUserID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	listingID, err := validators.ParsePathUUID(chi.URLParam(r, "listingId"), "listingId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	listing, err := listingSvc.Get(r.Context(), listingID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if listing.SellerUserID != userID {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another seller")
	}

	return userID, listingID, nil
}

func newListingProductResponse(product *models.ListingProduct) listingProductResponse {
	if product == nil {
		return listingProductResponse{}
	}
	return listingProductResponse{
		ListingID:       product.ListingID,
		StripeProductID: product.StripeProductID,
		StripePriceID:   product.StripePriceID,
		Active:          product.Active,
	}
}
