package catalog

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/product"

	pkgstripe "github.com/relistco/relist-backend/pkg/stripe"
)

// StripeCatalogClient exposes the subset of Stripe operations required by the
// catalog service. All calls run against the seller's connected account.
type StripeCatalogClient interface {
	CreateProduct(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error)
	CreatePrice(ctx context.Context, params *stripe.PriceParams) (*stripe.Price, error)
	UpdatePrice(ctx context.Context, id string, params *stripe.PriceParams) (*stripe.Price, error)
	GetPrice(ctx context.Context, id string, params *stripe.PriceParams) (*stripe.Price, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the global Stripe client so the catalog service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeCatalogClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateProduct(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error) {
	if params != nil {
		params.Context = ctx
	}
	return product.New(params)
}

func (w *stripeClientWrapper) CreatePrice(ctx context.Context, params *stripe.PriceParams) (*stripe.Price, error) {
	if params != nil {
		params.Context = ctx
	}
	return price.New(params)
}

func (w *stripeClientWrapper) UpdatePrice(ctx context.Context, id string, params *stripe.PriceParams) (*stripe.Price, error) {
	if params != nil {
		params.Context = ctx
	}
	return price.Update(id, params)
}

func (w *stripeClientWrapper) GetPrice(ctx context.Context, id string, params *stripe.PriceParams) (*stripe.Price, error) {
	if params != nil {
		params.Context = ctx
	}
	return price.Get(id, params)
}
