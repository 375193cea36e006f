package payment

import (
	"fmt"

	"cedabot/app/config"
	"cedabot/app/model"

	"github.com/samber/do"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

// Client creates Stripe Checkout sessions for cart payments. Prices are in
// MXN and Stripe expects amounts in cents.
type Client struct {
	successURL string
	cancelURL  string
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	stripe.Key = cfg.Stripe.SecretKey

	return &Client{
		successURL: cfg.Stripe.SuccessURL,
		cancelURL:  cfg.Stripe.CancelURL,
	}, nil
}

// CreateCheckoutSession builds a payment session for the cart lines and
// returns the hosted checkout URL.
func (c *Client) CreateCheckoutSession(conversationID string, lines []model.CartLine) (string, error) {
	if len(lines) == 0 {
		return "", fmt.Errorf("cart is empty")
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(lines))

	for _, line := range lines {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:        stripe.String(line.Name),
			Description: stripe.String(fmt.Sprintf("%s - %s", line.Type, line.Category)),
		}
		if line.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{line.ImageURL})
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyMXN)),
				ProductData: productData,
				UnitAmount:  stripe.Int64(int64(line.PriceMXN * 100)),
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(c.successURL),
		CancelURL:          stripe.String(c.cancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"MX"}),
		},
	}
	params.AddMetadata("conversation_id", conversationID)

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.URL, nil
}
