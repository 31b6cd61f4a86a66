package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studygenius/billing/internal/app/service/billing"
	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/internal/platform/stripe/stripe_api"
	"github.com/studygenius/billing/pkg/config"
)

type stubStore struct {
	billing.Store
	recs map[string]*models.UserBilling
}

func (s *stubStore) Get(_ context.Context, userID string) (*models.UserBilling, error) {
	if r, ok := s.recs[userID]; ok {
		return r, nil
	}
	return nil, billing.ErrRecordNotFound
}

func (s *stubStore) EnsureCustomerID(_ context.Context, userID, customerID string) (string, error) {
	r, ok := s.recs[userID]
	if !ok {
		r = &models.UserBilling{UserID: userID}
		s.recs[userID] = r
	}
	if r.CustomerID == nil {
		r.CustomerID = lo.ToPtr(customerID)
	}
	return *r.CustomerID, nil
}

type stubProvider struct {
	customers []*stripe_api.CreateCustomerRequest
	checkouts []*stripe_api.CheckoutSessionRequest
	portals   []string
	err       error
}

func (p *stubProvider) CreateCustomer(_ context.Context, req *stripe_api.CreateCustomerRequest) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.customers = append(p.customers, req)
	return "cus_new", nil
}

func (p *stubProvider) CreateCheckoutSession(_ context.Context, req *stripe_api.CheckoutSessionRequest) (*stripe_api.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.checkouts = append(p.checkouts, req)
	return &stripe_api.Session{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil
}

func (p *stubProvider) CreatePortalSession(_ context.Context, customerID, returnURL string) (*stripe_api.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.portals = append(p.portals, customerID+"|"+returnURL)
	return &stripe_api.Session{ID: "bps_1", URL: "https://billing.stripe.com/p/session/1"}, nil
}

func newTestService(recs ...*models.UserBilling) (*Service, *stubStore, *stubProvider) {
	cfg := &config.Config{}
	cfg.Billing.SiteURL = "https://studygenius.app"
	cfg.Billing.AutomaticTax = true
	cfg.Billing.Plans = map[string]string{"pro": "price_pro", "year": "price_year"}
	store := &stubStore{recs: map[string]*models.UserBilling{}}
	for _, r := range recs {
		store.recs[r.UserID] = r
	}
	p := &stubProvider{}
	return NewService(cfg, store, p, zap.NewNop().Sugar()), store, p
}

func TestResolvePrice(t *testing.T) {
	s, _, _ := newTestService()

	price, err := s.ResolvePrice("price_direct", "pro")
	require.NoError(t, err)
	require.Equal(t, "price_direct", price)

	price, err = s.ResolvePrice("", "Pro")
	require.NoError(t, err)
	require.Equal(t, "price_pro", price)

	_, err = s.ResolvePrice("", "enterprise")
	require.ErrorIs(t, err, ErrMissingPlan)

	_, err = s.ResolvePrice("", "")
	require.ErrorIs(t, err, ErrMissingPlan)
}

func TestCreateCheckoutSession_ProvisionsCustomer(t *testing.T) {
	s, store, p := newTestService()

	out, err := s.CreateCheckoutSession(context.Background(), Identity{UserID: "uid_1", Email: "a@b.c"}, &CreateCheckoutRequest{Plan: "year"})
	require.NoError(t, err)
	require.Equal(t, "cs_1", out.ID)
	require.Len(t, p.customers, 1)
	require.Equal(t, "a@b.c", p.customers[0].Email)
	require.Equal(t, "cus_new", *store.recs["uid_1"].CustomerID)

	req := p.checkouts[0]
	require.Equal(t, "uid_1", req.UserID)
	require.Equal(t, "cus_new", req.CustomerID)
	require.Equal(t, "price_year", req.PriceID)
	require.Equal(t, "https://studygenius.app/?success=true&session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	require.Equal(t, "https://studygenius.app/?canceled=true", req.CancelURL)
	require.True(t, req.AutomaticTax)
}

func TestCreateCheckoutSession_ReusesCustomer(t *testing.T) {
	s, _, p := newTestService(&models.UserBilling{UserID: "uid_1", CustomerID: lo.ToPtr("cus_existing")})

	_, err := s.CreateCheckoutSession(context.Background(), Identity{UserID: "uid_1"}, &CreateCheckoutRequest{PriceID: "price_x"})
	require.NoError(t, err)
	require.Empty(t, p.customers)
	require.Equal(t, "cus_existing", p.checkouts[0].CustomerID)
}

func TestCreateCheckoutSession_MissingPlanCallsNothing(t *testing.T) {
	s, _, p := newTestService()
	_, err := s.CreateCheckoutSession(context.Background(), Identity{UserID: "uid_1"}, nil)
	require.ErrorIs(t, err, ErrMissingPlan)
	require.Empty(t, p.customers)
	require.Empty(t, p.checkouts)
}

func TestCreateCheckoutSession_ProviderError(t *testing.T) {
	s, _, p := newTestService()
	p.err = errors.New("card declined")
	_, err := s.CreateCheckoutSession(context.Background(), Identity{UserID: "uid_1"}, &CreateCheckoutRequest{Plan: "pro"})
	require.EqualError(t, err, "card declined")
}

func TestCreatePortalSession(t *testing.T) {
	s, _, p := newTestService(&models.UserBilling{UserID: "uid_1", CustomerID: lo.ToPtr("cus_1")})

	out, err := s.CreatePortalSession(context.Background(), Identity{UserID: "uid_1"}, "")
	require.NoError(t, err)
	require.Equal(t, "https://billing.stripe.com/p/session/1", out.URL)
	require.Equal(t, []string{"cus_1|https://studygenius.app"}, p.portals)

	_, err = s.CreatePortalSession(context.Background(), Identity{UserID: "uid_1"}, "https://studygenius.app/account")
	require.NoError(t, err)
	require.Equal(t, "cus_1|https://studygenius.app/account", p.portals[1])
}

func TestCreatePortalSession_NoCustomer(t *testing.T) {
	s, _, _ := newTestService(&models.UserBilling{UserID: "uid_2"})
	_, err := s.CreatePortalSession(context.Background(), Identity{UserID: "uid_1"}, "")
	require.ErrorIs(t, err, ErrNoCustomer)
	_, err = s.CreatePortalSession(context.Background(), Identity{UserID: "uid_2"}, "")
	require.ErrorIs(t, err, ErrNoCustomer)
}
