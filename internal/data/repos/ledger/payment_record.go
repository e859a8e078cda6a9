package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/loanbook-backend/internal/domain"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

type PaymentRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, records []*types.PaymentRecord) ([]*types.PaymentRecord, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.PaymentRecord, error)
	GetByLoanID(ctx context.Context, tx *gorm.DB, loanID uuid.UUID) ([]*types.PaymentRecord, error)
	Update(ctx context.Context, tx *gorm.DB, record *types.PaymentRecord) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	DeleteByLoanIDs(ctx context.Context, tx *gorm.DB, loanIDs []uuid.UUID) error
}

type paymentRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaymentRecordRepo(db *gorm.DB, baseLog *logger.Logger) PaymentRecordRepo {
	repoLog := baseLog.With("repo", "PaymentRecordRepo")
	return &paymentRecordRepo{db: db, log: repoLog}
}

func (r *paymentRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.PaymentRecord) ([]*types.PaymentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(records) == 0 {
		return []*types.PaymentRecord{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *paymentRecordRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.PaymentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PaymentRecord
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

// GetByLoanID returns the complete payment set for one loan. Within a mutating
// transaction this includes the just-written row and excludes the just-deleted
// one, which is what the recompute contract requires.
func (r *paymentRecordRepo) GetByLoanID(ctx context.Context, tx *gorm.DB, loanID uuid.UUID) ([]*types.PaymentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PaymentRecord
	if loanID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("due_date asc, id asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *paymentRecordRepo) Update(ctx context.Context, tx *gorm.DB, record *types.PaymentRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if record == nil {
		return nil
	}

	if err := transaction.WithContext(ctx).Save(record).Error; err != nil {
		return err
	}
	return nil
}

func (r *paymentRecordRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.PaymentRecord{}).Error; err != nil {
		return err
	}
	return nil
}

func (r *paymentRecordRepo) DeleteByLoanIDs(ctx context.Context, tx *gorm.DB, loanIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(loanIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("loan_id IN ?", loanIDs).
		Delete(&types.PaymentRecord{}).Error; err != nil {
		return err
	}
	return nil
}
