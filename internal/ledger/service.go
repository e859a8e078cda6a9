package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/loanbook-backend/internal/data/repos"
	types "github.com/yungbote/loanbook-backend/internal/domain"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

// Service is the ledger store's write path. Every payment mutation runs the
// detail write and the aggregate recompute in one transaction, so callers can
// never observe a payment set with stale aggregates. A failed mutation rolls
// back both together.
type Service struct {
	db       *gorm.DB
	log      *logger.Logger
	engine   *Engine
	loans    repos.LoanRepo
	payments repos.PaymentRecordRepo
	bus      MutationBus // optional; nil when no queued consumers exist
}

func NewService(db *gorm.DB, baseLog *logger.Logger, engine *Engine, loans repos.LoanRepo, payments repos.PaymentRecordRepo, bus MutationBus) (*Service, error) {
	if db == nil || engine == nil || loans == nil || payments == nil {
		return nil, fmt.Errorf("ledger service requires db, engine and repos")
	}
	return &Service{
		db:       db,
		log:      baseLog.With("service", "LedgerService"),
		engine:   engine,
		loans:    loans,
		payments: payments,
		bus:      bus,
	}, nil
}

func (s *Service) CreateLoan(ctx context.Context, loan *types.Loan) (*types.Loan, error) {
	if loan == nil {
		return nil, fmt.Errorf("ledger service: nil loan")
	}
	created, err := s.loans.Create(ctx, nil, []*types.Loan{loan})
	if err != nil {
		return nil, MapError("ledger.create_loan", err)
	}
	return created[0], nil
}

func (s *Service) GetLoan(ctx context.Context, id uuid.UUID) (*types.Loan, error) {
	loan, err := s.loans.GetByID(ctx, nil, id)
	if err != nil {
		return nil, MapError("ledger.get_loan", err)
	}
	return loan, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*types.PaymentRecord, error) {
	rows, err := s.payments.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, MapError("ledger.get_payment", err)
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return rows[0], nil
}

func (s *Service) ListPayments(ctx context.Context, loanID uuid.UUID) ([]*types.PaymentRecord, error) {
	records, err := s.payments.GetByLoanID(ctx, nil, loanID)
	if err != nil {
		return nil, MapError("ledger.list_payments", err)
	}
	return records, nil
}

// DeleteLoan removes a loan and cascades to its payment records. No recompute
// runs: the parent the aggregates live on is gone.
func (s *Service) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	return RunInTx(ctx, s.db, s.log, "ledger.delete_loan", func(tx *gorm.DB) error {
		if err := s.payments.DeleteByLoanIDs(ctx, tx, []uuid.UUID{id}); err != nil {
			return err
		}
		return s.loans.SoftDeleteByIDs(ctx, tx, []uuid.UUID{id})
	})
}

func (s *Service) AddPayment(ctx context.Context, record *types.PaymentRecord) (*types.PaymentRecord, error) {
	if record == nil {
		return nil, fmt.Errorf("ledger service: nil payment record")
	}
	err := RunInTx(ctx, s.db, s.log, "ledger.add_payment", func(tx *gorm.DB) error {
		if _, err := s.payments.Create(ctx, tx, []*types.PaymentRecord{record}); err != nil {
			return err
		}
		return s.engine.OnPaymentMutation(ctx, tx, record.LoanID, ChangeInsert)
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, record.LoanID, ChangeInsert)
	return record, nil
}

func (s *Service) UpdatePayment(ctx context.Context, record *types.PaymentRecord) (*types.PaymentRecord, error) {
	if record == nil {
		return nil, fmt.Errorf("ledger service: nil payment record")
	}
	err := RunInTx(ctx, s.db, s.log, "ledger.update_payment", func(tx *gorm.DB) error {
		if err := s.payments.Update(ctx, tx, record); err != nil {
			return err
		}
		return s.engine.OnPaymentMutation(ctx, tx, record.LoanID, ChangeUpdate)
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, record.LoanID, ChangeUpdate)
	return record, nil
}

// SetPaymentReceived flips the checklist flag on one payment record.
func (s *Service) SetPaymentReceived(ctx context.Context, id uuid.UUID, received bool) (*types.PaymentRecord, error) {
	var record *types.PaymentRecord
	err := RunInTx(ctx, s.db, s.log, "ledger.set_payment_received", func(tx *gorm.DB) error {
		rows, err := s.payments.GetByIDs(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return gorm.ErrRecordNotFound
		}
		record = rows[0]
		record.IsReceived = received
		if err := s.payments.Update(ctx, tx, record); err != nil {
			return err
		}
		return s.engine.OnPaymentMutation(ctx, tx, record.LoanID, ChangeUpdate)
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, record.LoanID, ChangeUpdate)
	return record, nil
}

// RemovePayment deletes one payment record. The owning loan is captured
// before the delete so the recompute still knows which parent to refresh.
func (s *Service) RemovePayment(ctx context.Context, id uuid.UUID) error {
	var loanID uuid.UUID
	err := RunInTx(ctx, s.db, s.log, "ledger.remove_payment", func(tx *gorm.DB) error {
		rows, err := s.payments.GetByIDs(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return gorm.ErrRecordNotFound
		}
		loanID = rows[0].LoanID
		if err := s.payments.DeleteByIDs(ctx, tx, []uuid.UUID{id}); err != nil {
			return err
		}
		return s.engine.OnPaymentMutation(ctx, tx, loanID, ChangeDelete)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, loanID, ChangeDelete)
	return nil
}

// notify publishes a post-commit mutation event for queued consumers. The
// in-transaction recompute has already run, so consumers replaying the event
// are a no-op thanks to the sequence guard; losing an event costs nothing.
func (s *Service) notify(ctx context.Context, loanID uuid.UUID, kind ChangeKind) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.Publish(ctx, loanID, kind); err != nil {
		s.log.Warn("failed to publish mutation event", "loan_id", loanID, "change", string(kind), "error", err)
	}
}
