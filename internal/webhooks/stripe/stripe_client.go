package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/charge"

	pkgstripe "github.com/relistco/relist-backend/pkg/stripe"
)

// StripeChargeClient exposes the subset of Stripe operations required by the
// webhook processor.
type StripeChargeClient interface {
	GetCharge(ctx context.Context, id string, params *stripe.ChargeParams) (*stripe.Charge, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the global Stripe client so the webhook service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeChargeClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) GetCharge(ctx context.Context, id string, params *stripe.ChargeParams) (*stripe.Charge, error) {
	if params != nil {
		params.Context = ctx
	}
	return charge.Get(id, params)
}
