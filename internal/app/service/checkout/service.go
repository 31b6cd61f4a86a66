package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/studygenius/billing/internal/app/service/billing"
	"github.com/studygenius/billing/internal/platform/stripe/stripe_api"
	"github.com/studygenius/billing/pkg/config"
	"github.com/studygenius/billing/pkg/logctx"
)

var (
	ErrMissingPlan = errors.New("missing priceId or plan")
	ErrNoCustomer  = errors.New("no billing customer for user")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// Provider is the subset of the payment provider API used for sessions.
type Provider interface {
	CreateCustomer(ctx context.Context, req *stripe_api.CreateCustomerRequest) (string, error)
	CreateCheckoutSession(ctx context.Context, req *stripe_api.CheckoutSessionRequest) (*stripe_api.Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripe_api.Session, error)
}

type CreateCheckoutRequest struct {
	PriceID string `json:"priceId"`
	Plan    string `json:"plan"`
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type PortalSession struct {
	URL string `json:"url"`
}

type Service struct {
	cfg      *config.Config
	store    billing.Store
	provider Provider
	log      *zap.SugaredLogger
}

func NewService(cfg *config.Config, store billing.Store, provider Provider, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, store: store, provider: provider, log: log}
}

// ResolvePrice picks the price for a checkout. An explicit price id wins
// over a named plan.
func (s *Service) ResolvePrice(priceID, plan string) (string, error) {
	if priceID != "" {
		return priceID, nil
	}
	if price, ok := s.cfg.PriceForPlan(plan); ok {
		return price, nil
	}
	if plan != "" {
		return "", fmt.Errorf("%w: unknown plan %q", ErrMissingPlan, plan)
	}
	return "", ErrMissingPlan
}

func (s *Service) CreateCheckoutSession(ctx context.Context, id Identity, req *CreateCheckoutRequest) (*CheckoutSession, error) {
	if req == nil {
		req = &CreateCheckoutRequest{}
	}
	price, err := s.ResolvePrice(req.PriceID, req.Plan)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	session, err := s.provider.CreateCheckoutSession(ctx, &stripe_api.CheckoutSessionRequest{
		UserID:       id.UserID,
		CustomerID:   customerID,
		PriceID:      price,
		SuccessURL:   s.cfg.Billing.SiteURL + "/?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    s.cfg.Billing.SiteURL + "/?canceled=true",
		AutomaticTax: s.cfg.Billing.AutomaticTax,
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("checkout_session_created", "session_id", session.ID, "customer_id", customerID, "price_id", price)
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, id Identity, returnURL string) (*PortalSession, error) {
	rec, err := s.store.Get(ctx, id.UserID)
	if err != nil && !errors.Is(err, billing.ErrRecordNotFound) {
		return nil, err
	}
	if rec == nil || rec.CustomerID == nil || *rec.CustomerID == "" {
		return nil, ErrNoCustomer
	}
	if returnURL == "" {
		returnURL = s.cfg.Billing.SiteURL
	}
	session, err := s.provider.CreatePortalSession(ctx, *rec.CustomerID, returnURL)
	if err != nil {
		return nil, err
	}
	return &PortalSession{URL: session.URL}, nil
}

// ensureCustomer returns the stored customer id, provisioning one on first
// use. When two requests race, the id stored first wins.
func (s *Service) ensureCustomer(ctx context.Context, id Identity) (string, error) {
	rec, err := s.store.Get(ctx, id.UserID)
	if err != nil && !errors.Is(err, billing.ErrRecordNotFound) {
		return "", err
	}
	if rec != nil && rec.CustomerID != nil && *rec.CustomerID != "" {
		return *rec.CustomerID, nil
	}
	created, err := s.provider.CreateCustomer(ctx, &stripe_api.CreateCustomerRequest{UserID: id.UserID, Email: id.Email})
	if err != nil {
		return "", err
	}
	logctx.FromCtx(ctx, s.log).Infow("billing_customer_created", "customer_id", created)
	return s.store.EnsureCustomerID(ctx, id.UserID, created)
}

var Module = fx.Options(
	fx.Provide(
		func(c *stripe_api.Client) Provider { return c },
		NewService,
	),
)
