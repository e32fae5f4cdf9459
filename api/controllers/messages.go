package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/relistco/relist-backend/api/middleware"
	"github.com/relistco/relist-backend/api/responses"
	"github.com/relistco/relist-backend/api/validators"
	"github.com/relistco/relist-backend/internal/listings"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
	"github.com/relistco/relist-backend/pkg/mailer"
)

type contactSellerRequest struct {
	SellerEmail string `json:"seller_email" validate:"required,email"`
	Message     string `json:"message" validate:"required,min=1,max=2000"`
}

// ContactSeller emails a buyer's question about a listing to its seller. The
// reply-to is the buyer's own address, so the conversation continues over
// plain email without the platform in the loop.
func ContactSeller(mail mailer.Mailer, listingSvc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mail == nil || listingSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mailer unavailable"))
			return
		}

		if _, err := authedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		buyerEmail := middleware.EmailFromContext(r.Context())
		if buyerEmail == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "caller has no email on record"))
			return
		}

		listingID, err := validators.ParsePathUUID(chi.URLParam(r, "listingId"), "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := listingSvc.Get(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload contactSellerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := mail.SendListingMessage(r.Context(), mailer.ListingMessage{
			To:           payload.SellerEmail,
			ReplyTo:      buyerEmail,
			ListingTitle: listing.Title,
			Message:      payload.Message,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send listing message"))
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
