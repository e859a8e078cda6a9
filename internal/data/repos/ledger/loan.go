package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/loanbook-backend/internal/domain"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

type LoanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, loans []*types.Loan) ([]*types.Loan, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Loan, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Loan, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Loan, error)
	ListIDsAfter(ctx context.Context, tx *gorm.DB, afterID uuid.UUID, limit int) ([]uuid.UUID, error)
	UpdateAggregates(ctx context.Context, tx *gorm.DB, id uuid.UUID, totalReceived decimal.Decimal, nextDue, expectedLast *datatypes.Date, seq int64, now time.Time) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type loanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLoanRepo(db *gorm.DB, baseLog *logger.Logger) LoanRepo {
	repoLog := baseLog.With("repo", "LoanRepo")
	return &loanRepo{db: db, log: repoLog}
}

func (r *loanRepo) Create(ctx context.Context, tx *gorm.DB, loans []*types.Loan) ([]*types.Loan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(loans) == 0 {
		return []*types.Loan{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *loanRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Loan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Loan
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *loanRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Loan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Loan
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// GetByIDForUpdate locks the loan row for the remainder of the transaction.
// Every recompute for a loan goes through this lock, which serializes
// concurrent mutations of the same loan's payment set.
func (r *loanRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Loan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Loan
	if err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *loanRepo) ListIDsAfter(ctx context.Context, tx *gorm.DB, afterID uuid.UUID, limit int) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 500
	}

	var ids []uuid.UUID
	q := transaction.WithContext(ctx).
		Model(&types.Loan{}).
		Order("id asc").
		Limit(limit)
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateAggregates is the sole write path to the derived aggregate columns.
// Callers must already hold the loan row lock (GetByIDForUpdate) in the same
// transaction.
func (r *loanRepo) UpdateAggregates(ctx context.Context, tx *gorm.DB, id uuid.UUID, totalReceived decimal.Decimal, nextDue, expectedLast *datatypes.Date, seq int64, now time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	lastUpdated := datatypes.Date(now)
	updates := map[string]interface{}{
		"total_amount_received": totalReceived,
		"next_payment_due":      nextDue,
		"expected_last_payment": expectedLast,
		"last_updated":          lastUpdated,
		"applied_mutation_seq":  seq,
		"updated_at":            now,
	}

	if err := transaction.WithContext(ctx).
		Model(&types.Loan{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return err
	}
	return nil
}

func (r *loanRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.Loan{}).Error; err != nil {
		return err
	}
	return nil
}

func (r *loanRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Unscoped().
		Where("id IN ?", ids).
		Delete(&types.Loan{}).Error; err != nil {
		return err
	}
	return nil
}
