package checkout

import (
	"github.com/google/uuid"

	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
)

// Metadata keys stamped onto the payment intent at checkout. The webhook
// processor reads them back off the charge to tie money movement to a sale.
const (
	MetadataKeyListingID = "listing_id"
	MetadataKeyBuyerID   = "buyer_id"
	MetadataKeySellerID  = "seller_id"
)

// PurchaseMetadata identifies the three parties of a sale.
type PurchaseMetadata struct {
	ListingID uuid.UUID
	BuyerID   uuid.UUID
	SellerID  uuid.UUID
}

// Encode renders the metadata map stamped onto Stripe objects.
func (m PurchaseMetadata) Encode() map[string]string {
	return map[string]string{
		MetadataKeyListingID: m.ListingID.String(),
		MetadataKeyBuyerID:   m.BuyerID.String(),
		MetadataKeySellerID:  m.SellerID.String(),
	}
}

// DecodePurchaseMetadata parses the purchase identifiers back out of a Stripe
// metadata map. All three keys must be present and valid UUIDs.
func DecodePurchaseMetadata(metadata map[string]string) (*PurchaseMetadata, error) {
	if len(metadata) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase metadata missing")
	}

	listingID, err := uuid.Parse(metadata[MetadataKeyListingID])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id in metadata")
	}
	buyerID, err := uuid.Parse(metadata[MetadataKeyBuyerID])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer id in metadata")
	}
	sellerID, err := uuid.Parse(metadata[MetadataKeySellerID])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller id in metadata")
	}

	return &PurchaseMetadata{
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
	}, nil
}
