package billing

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/pkg/logctx"
	"github.com/studygenius/billing/pkg/types"

	"go.uber.org/zap"
)

var (
	ErrRecordNotFound = errors.New("billing record not found")
	// ErrCustomerConflict means the customer id is already stored on another
	// user's record.
	ErrCustomerConflict = errors.New("customer id belongs to another billing record")
)

// ApplyOptions tunes how a merge-patch is applied.
type ApplyOptions struct {
	// DiscardStale skips patches from events older than the record's last
	// applied event.
	DiscardStale bool
}

type ApplyResult struct {
	Record  *models.UserBilling
	Created bool
	Skipped bool
}

// Store persists one billing record per user, addressable by user id and,
// through a query, by provider customer id.
type Store interface {
	Get(ctx context.Context, userID string) (*models.UserBilling, error)
	FindByCustomerID(ctx context.Context, customerID string) (*models.UserBilling, error)
	// EnsureCustomerID stores customerID for the user unless one is already
	// set, and returns the id that is stored afterwards.
	EnsureCustomerID(ctx context.Context, userID, customerID string) (string, error)
	// ApplyPatch merge-writes the patch, creating the record if absent.
	ApplyPatch(ctx context.Context, userID string, patch *models.BillingPatch, opts ApplyOptions) (*ApplyResult, error)
	// ApplyPatchByCustomer merge-writes the patch onto the record owning
	// customerID. It never creates a record.
	ApplyPatchByCustomer(ctx context.Context, customerID string, patch *models.BillingPatch, opts ApplyOptions) (*ApplyResult, error)
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

type GormStore struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewGormStore(db *gorm.DB, log *zap.SugaredLogger) *GormStore {
	return &GormStore{db: db, log: log}
}

func (s *GormStore) Get(ctx context.Context, userID string) (*models.UserBilling, error) {
	var rec models.UserBilling
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load billing record: %w", err)
	}
	return &rec, nil
}

func (s *GormStore) FindByCustomerID(ctx context.Context, customerID string) (*models.UserBilling, error) {
	var rec models.UserBilling
	if err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).Limit(1).Find(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to query billing record by customer: %w", err)
	}
	if rec.UserID == "" {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (s *GormStore) EnsureCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	if userID == "" || customerID == "" {
		return "", fmt.Errorf("invalid params: userID and customerID required")
	}
	var stored string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ensureRow(ctx, tx, userID); err != nil {
			return err
		}
		if err := claimCustomer(tx.WithContext(ctx), userID, customerID).Error; err != nil {
			return fmt.Errorf("failed to set customer id: %w", err)
		}
		rec, err := s.lockByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if rec.CustomerID != nil {
			stored = *rec.CustomerID
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if stored != customerID {
		logctx.FromCtx(ctx, s.log).Warnw("billing_customer_already_provisioned", "user_id", userID, "customer_id", stored, "discarded_customer_id", customerID)
	}
	return stored, nil
}

func (s *GormStore) ApplyPatch(ctx context.Context, userID string, patch *models.BillingPatch, opts ApplyOptions) (*ApplyResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("invalid params: userID required")
	}
	res := &ApplyResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.ensureRow(ctx, tx, userID)
		if err != nil {
			return err
		}
		res.Created = created
		rec, err := s.lockByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		return s.merge(ctx, tx, rec, patch, opts, res)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply billing patch: %w", err)
	}
	return res, nil
}

func (s *GormStore) ApplyPatchByCustomer(ctx context.Context, customerID string, patch *models.BillingPatch, opts ApplyOptions) (*ApplyResult, error) {
	if customerID == "" {
		return nil, fmt.Errorf("invalid params: customerID required")
	}
	res := &ApplyResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.UserBilling
		if q := lockByCustomer(tx.WithContext(ctx), customerID, &rec); q.Error != nil {
			return fmt.Errorf("failed to lock billing record by customer: %w", q.Error)
		}
		if rec.UserID == "" {
			return ErrRecordNotFound
		}
		return s.merge(ctx, tx, &rec, patch, opts, res)
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to apply billing patch: %w", err)
	}
	return res, nil
}

func (s *GormStore) merge(ctx context.Context, tx *gorm.DB, rec *models.UserBilling, patch *models.BillingPatch, opts ApplyOptions, res *ApplyResult) error {
	res.Record = rec
	if opts.DiscardStale && patch.StaleFor(rec) {
		res.Skipped = true
		logctx.FromCtx(ctx, s.log).Infow("billing_patch_stale_skipped", "user_id", rec.UserID, "event_id", patch.EventID, "last_event_id", rec.LastEventID)
		return nil
	}
	patch.Merge(rec)
	if err := tx.WithContext(ctx).Save(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %w", ErrCustomerConflict, err)
		}
		return fmt.Errorf("failed to save billing record: %w", err)
	}
	return nil
}

// ensureRow inserts an empty free record for the user if none exists.
func (s *GormStore) ensureRow(ctx context.Context, tx *gorm.DB, userID string) (bool, error) {
	q := insertFreeRow(tx.WithContext(ctx), userID)
	if q.Error != nil {
		return false, fmt.Errorf("failed to create billing record: %w", q.Error)
	}
	return q.RowsAffected == 1, nil
}

func (s *GormStore) lockByUser(ctx context.Context, tx *gorm.DB, userID string) (*models.UserBilling, error) {
	var rec models.UserBilling
	if err := lockByUserID(tx.WithContext(ctx), userID, &rec).Error; err != nil {
		return nil, fmt.Errorf("failed to lock billing record: %w", err)
	}
	return &rec, nil
}

// filtersAnd is a helper to combine multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.UserBilling `json:"items"`
	Total int64                 `json:"total"`
}

var sortableColumns = []string{"user_id", "subscription_status", "current_period_end", "created_at", "updated_at", "last_event_at"}

func normalizeScanRequest(req *ScanRequest) {
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.Size > 500 {
		req.Size = 500
	}
	if req.From < 0 {
		req.From = 0
	}
	valid := false
	for _, c := range sortableColumns {
		if c == req.SortBy {
			valid = true
			break
		}
	}
	if !valid {
		req.SortBy = "updated_at"
	}
}

func (s *GormStore) scanQuery(ctx context.Context, req *ScanRequest) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.UserBilling{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}
	return tx
}

// Scan implements paginated/admin listing with filters
func (s *GormStore) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if err := types.ValidateFilters(req.Filters, models.UserBillingFilterColumns); err != nil {
		return nil, err
	}
	normalizeScanRequest(req)

	var total int64
	if err := s.scanQuery(ctx, req).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count billing records: %w", err)
	}

	var rows []*models.UserBilling
	q := s.scanQuery(ctx, req).Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list billing records: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}

// insertFreeRow creates the lazy free row; an existing row for the user wins.
func insertFreeRow(tx *gorm.DB, userID string) *gorm.DB {
	row := &models.UserBilling{UserID: userID, SubscriptionStatus: types.SubscriptionStatusFree}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
}

// claimCustomer sets customer_id only while it is still unset.
func claimCustomer(tx *gorm.DB, userID, customerID string) *gorm.DB {
	return tx.Model(&models.UserBilling{}).
		Where("user_id = ? AND customer_id IS NULL", userID).
		Update("customer_id", customerID)
}

func lockByUserID(tx *gorm.DB, userID string, rec *models.UserBilling) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(rec)
}

func lockByCustomer(tx *gorm.DB, customerID string, rec *models.UserBilling) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("customer_id = ?", customerID).Limit(1).Find(rec)
}
