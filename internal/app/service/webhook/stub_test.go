package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/studygenius/billing/internal/app/service/billing"
	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/pkg/types"
)

// memStore mirrors GormStore semantics over a map.
type memStore struct {
	mu      sync.Mutex
	records map[string]*models.UserBilling
	err     error
	writes  int
}

func newMemStore(recs ...*models.UserBilling) *memStore {
	s := &memStore{records: map[string]*models.UserBilling{}}
	for _, r := range recs {
		s.records[r.UserID] = r
	}
	return s
}

func (s *memStore) copyOf(userID string) *models.UserBilling {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[userID]
	if !ok {
		return nil
	}
	c := *r
	return &c
}

func (s *memStore) Get(_ context.Context, userID string) (*models.UserBilling, error) {
	if r := s.copyOf(userID); r != nil {
		return r, nil
	}
	return nil, billing.ErrRecordNotFound
}

func (s *memStore) FindByCustomerID(_ context.Context, customerID string) (*models.UserBilling, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.CustomerID != nil && *r.CustomerID == customerID {
			c := *r
			return &c, nil
		}
	}
	return nil, billing.ErrRecordNotFound
}

func (s *memStore) EnsureCustomerID(_ context.Context, userID, customerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[userID]
	if !ok {
		r = &models.UserBilling{UserID: userID, SubscriptionStatus: types.SubscriptionStatusFree}
		s.records[userID] = r
	}
	if r.CustomerID == nil {
		r.CustomerID = &customerID
	}
	return *r.CustomerID, nil
}

func (s *memStore) ApplyPatch(_ context.Context, userID string, patch *models.BillingPatch, opts billing.ApplyOptions) (*billing.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if patch.CustomerID != nil {
		for uid, other := range s.records {
			if uid != userID && other.CustomerID != nil && *other.CustomerID == *patch.CustomerID {
				return nil, fmt.Errorf("failed to apply billing patch: %w", billing.ErrCustomerConflict)
			}
		}
	}
	res := &billing.ApplyResult{}
	r, ok := s.records[userID]
	if !ok {
		r = &models.UserBilling{UserID: userID, SubscriptionStatus: types.SubscriptionStatusFree}
		s.records[userID] = r
		res.Created = true
	}
	return s.merge(r, patch, opts, res), nil
}

func (s *memStore) ApplyPatchByCustomer(_ context.Context, customerID string, patch *models.BillingPatch, opts billing.ApplyOptions) (*billing.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, r := range s.records {
		if r.CustomerID != nil && *r.CustomerID == customerID {
			return s.merge(r, patch, opts, &billing.ApplyResult{}), nil
		}
	}
	return nil, billing.ErrRecordNotFound
}

func (s *memStore) merge(r *models.UserBilling, patch *models.BillingPatch, opts billing.ApplyOptions, res *billing.ApplyResult) *billing.ApplyResult {
	if opts.DiscardStale && patch.StaleFor(r) {
		res.Skipped = true
	} else {
		patch.Merge(r)
		s.writes++
	}
	c := *r
	res.Record = &c
	return res
}

func (s *memStore) Scan(context.Context, *billing.ScanRequest) (*billing.ScanResponse, error) {
	return nil, errors.New("not implemented")
}

type stubFetcher struct {
	subs  map[string]*types.SubscriptionSnapshot
	err   error
	calls int
}

func (f *stubFetcher) FetchSubscription(_ context.Context, id string) (*types.SubscriptionSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.subs[id]
	if !ok {
		return nil, types.ErrProviderRejected
	}
	c := *s
	return &c, nil
}
