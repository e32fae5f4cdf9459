package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relistco/relist-backend/api/responses"
	"github.com/relistco/relist-backend/api/validators"
	"github.com/relistco/relist-backend/internal/ledger"
	"github.com/relistco/relist-backend/internal/listings"
	"github.com/relistco/relist-backend/pkg/db/models"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
	"github.com/relistco/relist-backend/pkg/pagination"
)

type transactionResponse struct {
	ID                uuid.UUID `json:"id"`
	ListingID         uuid.UUID `json:"listing_id"`
	BuyerUserID       uuid.UUID `json:"buyer_user_id"`
	SellerUserID      uuid.UUID `json:"seller_user_id"`
	StripeObjectID    string    `json:"stripe_object_id"`
	StripeChargeID    *string   `json:"stripe_charge_id,omitempty"`
	CheckoutSessionID *string   `json:"checkout_session_id,omitempty"`
	AmountCents       int64     `json:"amount_cents"`
	FeeCents          int64     `json:"fee_cents"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type transactionListResponse struct {
	Items  []transactionResponse `json:"items"`
	Cursor string                `json:"cursor,omitempty"`
}

// ListTransactions returns the caller's transaction history, as buyer, seller
// or both.
func ListTransactions(svc *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := parseRole(r.URL.Query().Get("role"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), ledger.ListParams{
			UserID: userID,
			Role:   role,
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]transactionResponse, 0, len(result.Items))
		for _, txn := range result.Items {
			items = append(items, newTransactionResponse(txn))
		}

		responses.WriteSuccess(w, transactionListResponse{
			Items:  items,
			Cursor: result.Cursor,
		})
	}
}

// ListListingTransactions returns all transactions recorded against one of
// the caller's listings.
func ListListingTransactions(svc *ledger.Service, listingSvc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || listingSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		_, listingID, err := authedListingOwner(r, listingSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByListing(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]transactionResponse, 0, len(rows))
		for _, txn := range rows {
			items = append(items, newTransactionResponse(txn))
		}

		responses.WriteSuccess(w, transactionListResponse{Items: items})
	}
}

func parseRole(raw string) (ledger.Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ledger.RoleAll, nil
	case string(ledger.RoleBuyer):
		return ledger.RoleBuyer, nil
	case string(ledger.RoleSeller):
		return ledger.RoleSeller, nil
	case string(ledger.RoleAll):
		return ledger.RoleAll, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "role must be buyer, seller or all").WithDetails(map[string]any{"field": "role"})
}

func newTransactionResponse(txn models.PaymentTransaction) transactionResponse {
	return transactionResponse{
		ID:                txn.ID,
		ListingID:         txn.ListingID,
		BuyerUserID:       txn.BuyerUserID,
		SellerUserID:      txn.SellerUserID,
		StripeObjectID:    txn.StripeObjectID,
		StripeChargeID:    txn.StripeChargeID,
		CheckoutSessionID: txn.CheckoutSessionID,
		AmountCents:       txn.AmountCents,
		FeeCents:          txn.FeeCents,
		Currency:          txn.Currency,
		Status:            txn.Status.String(),
		CreatedAt:         txn.CreatedAt,
	}
}
