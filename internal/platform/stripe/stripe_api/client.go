package stripe_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/fx"

	"github.com/studygenius/billing/pkg/config"
	"github.com/studygenius/billing/pkg/types"
)

// Client wraps the Stripe API calls used by billing.
type Client struct {
	api *client.API
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is not configured")
	}
	api := &client.API{}
	api.Init(cfg.Stripe.SecretKey, nil)
	return &Client{api: api}, nil
}

// FetchSubscription retrieves the live state of a subscription.
func (c *Client) FetchSubscription(ctx context.Context, subscriptionID string) (*types.SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, wrapErr("retrieve subscription", err)
	}
	return SnapshotFromSubscription(sub)
}

type CreateCustomerRequest struct {
	UserID string
	Email  string
}

func (c *Client) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (string, error) {
	params := &stripe.CustomerParams{}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.AddMetadata("firebaseUID", req.UserID)
	params.Context = ctx
	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", wrapErr("create customer", err)
	}
	return cus.ID, nil
}

type CheckoutSessionRequest struct {
	UserID       string
	CustomerID   string
	PriceID      string
	SuccessURL   string
	CancelURL    string
	AutomaticTax bool
}

type Session struct {
	ID  string
	URL string
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Customer:           stripe.String(req.CustomerID),
		ClientReferenceID:  stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:   stripe.String(req.SuccessURL),
		CancelURL:    stripe.String(req.CancelURL),
		AutomaticTax: &stripe.CheckoutSessionAutomaticTaxParams{Enabled: stripe.Bool(req.AutomaticTax)},
	}
	params.AddMetadata("userId", req.UserID)
	params.Context = ctx
	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapErr("create checkout session", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, wrapErr("create billing portal session", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// SnapshotFromSubscription converts a Stripe subscription. The billing period
// lives on subscription items since API version 2025-03-31.
func SnapshotFromSubscription(sub *stripe.Subscription) (*types.SubscriptionSnapshot, error) {
	if sub == nil {
		return nil, fmt.Errorf("nil subscription")
	}
	status, ok := types.ParseProviderStatus(string(sub.Status))
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownSubscriptionStatus, sub.Status)
	}
	snap := &types.SubscriptionSnapshot{ID: sub.ID, Status: status}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.CurrentPeriodEnd > 0 {
			snap.CurrentPeriodEnd = item.CurrentPeriodEnd * 1000
		}
		switch {
		case item.Price != nil && item.Price.Recurring != nil:
			snap.Interval = types.ParsePlanInterval(string(item.Price.Recurring.Interval))
		case item.Plan != nil:
			snap.Interval = types.ParsePlanInterval(string(item.Plan.Interval))
		}
	}
	return snap, nil
}

// wrapErr marks client errors answered by Stripe as permanent. Timeouts,
// conflicts, rate limits and server errors stay retryable.
func wrapErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && isPermanentStatus(se.HTTPStatusCode) {
		return fmt.Errorf("stripe %s: %w: %s", op, types.ErrProviderRejected, se.Msg)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

func isPermanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return true
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
