package lib

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

// GetStripeClient returns nil when STRIPE_SECRET_KEY is unset.
func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	if apiKey == "" {
		return nil
	}
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

type CheckoutRequest struct {
	Reference   string
	Description string
	Currency    string
	Amount      decimal.Decimal
	Metadata    map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// StripeCheckout opens hosted Checkout sessions for card payments.
type StripeCheckout struct {
	client *stripe.Client
}

func NewStripeCheckout(c *stripe.Client) *StripeCheckout {
	return &StripeCheckout{client: c}
}

func (s *StripeCheckout) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	successUrl := fmt.Sprintf("%s/checkout/callback/success", os.Getenv("APP_HOST"))
	cancelUrl := fmt.Sprintf("%s/checkout/callback/cancel", os.Getenv("APP_HOST"))
	// Stripe expects minor units.
	unitAmount := req.Amount.Mul(decimal.NewFromInt(100)).Ceil().IntPart()
	params := stripe.CheckoutSessionCreateParams{
		SuccessURL:        stripe.String(successUrl),
		CancelURL:         stripe.String(cancelUrl),
		UIMode:            stripe.String("hosted"),
		Mode:              stripe.String("payment"),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(unitAmount),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: req.Metadata,
	}
	cs, err := s.client.V1CheckoutSessions.Create(ctx, &params)
	if err != nil {
		log.Printf("[Stripe] Error creating CheckoutSession for %s: %s\n", req.Reference, err.Error())
		return nil, err
	}
	return &CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}
