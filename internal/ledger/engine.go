package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/loanbook-backend/internal/data/repos"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

// ChangeKind names the payment mutation that triggered a recompute.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Engine keeps a loan's cached aggregates equal to Calculate over its current
// payment set. It is reactive: the write path invokes it after every payment
// mutation, inside the same transaction, so no other transaction can observe
// the new payment set with stale aggregates or vice versa.
type Engine struct {
	db       *gorm.DB
	log      *logger.Logger
	policies *Registry
	loans    repos.LoanRepo
	payments repos.PaymentRecordRepo
}

func NewEngine(db *gorm.DB, baseLog *logger.Logger, policies *Registry, loans repos.LoanRepo, payments repos.PaymentRecordRepo) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger engine requires a db")
	}
	if policies == nil || !policies.Active().Valid() {
		return nil, fmt.Errorf("%w: engine refuses to start", ErrPolicyMisconfigured)
	}
	if loans == nil || payments == nil {
		return nil, fmt.Errorf("ledger engine requires loan and payment repos")
	}
	return &Engine{
		db:       db,
		log:      baseLog.With("service", "LedgerEngine"),
		policies: policies,
		loans:    loans,
		payments: payments,
	}, nil
}

func (e *Engine) Policies() *Registry { return e.policies }

// OnPaymentMutation is the observer callback for a payment insert, update or
// delete. It must run inside the transaction that performed the mutation; for
// deletes, loanID is the owning loan of the row before deletion.
func (e *Engine) OnPaymentMutation(ctx context.Context, tx *gorm.DB, loanID uuid.UUID, kind ChangeKind) error {
	if tx == nil {
		return fmt.Errorf("ledger engine: recompute requires the mutating transaction")
	}
	e.log.Debug("payment mutation", "loan_id", loanID, "change", string(kind))
	return e.recompute(ctx, tx, loanID, 0)
}

// RecomputeLoan runs a recompute in its own transaction, tagged with the
// mutation sequence the triggering event carried. Used by the queued variant,
// where the recompute is decoupled from the transaction that wrote the
// payment row.
func (e *Engine) RecomputeLoan(ctx context.Context, loanID uuid.UUID, seq int64) error {
	return RunInTx(ctx, e.db, e.log, "ledger.recompute", func(tx *gorm.DB) error {
		return e.RecomputeAt(ctx, tx, loanID, seq)
	})
}

// RecomputeAt is the seq-guarded recompute for callers that already hold a
// transaction.
func (e *Engine) RecomputeAt(ctx context.Context, tx *gorm.DB, loanID uuid.UUID, seq int64) error {
	if tx == nil {
		return fmt.Errorf("ledger engine: recompute requires a transaction")
	}
	return e.recompute(ctx, tx, loanID, seq)
}

// recompute locks the loan row, rereads the full payment set and overwrites
// the cached aggregates. The row lock is the serialization point: a later
// recompute for the same loan always observes the fully committed effects of
// any recompute that already released it. A seq of 0 means the caller is
// inside the mutating transaction and needs no staleness guard; a positive
// seq is rejected when a newer mutation has already been applied, so
// out-of-order delivery can never regress the aggregates.
func (e *Engine) recompute(ctx context.Context, tx *gorm.DB, loanID uuid.UUID, seq int64) error {
	loan, err := e.loans.GetByIDForUpdate(ctx, tx, loanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Parent concurrently deleted; its cascade removed every payment
		// record, so there is nothing to aggregate onto.
		e.log.Debug("skipping recompute for missing loan", "loan_id", loanID)
		return nil
	}
	if err != nil {
		return MapError("ledger.recompute", err)
	}

	appliedSeq := loan.AppliedMutationSeq
	if seq > 0 {
		if loan.AppliedMutationSeq >= seq {
			e.log.Debug("skipping stale recompute",
				"loan_id", loanID, "seq", seq, "applied_seq", loan.AppliedMutationSeq)
			return nil
		}
		appliedSeq = seq
	}

	records, err := e.payments.GetByLoanID(ctx, tx, loanID)
	if err != nil {
		return MapError("ledger.recompute", err)
	}

	agg, err := Calculate(e.policies.Active(), records)
	if err != nil {
		return MapError("ledger.recompute", err)
	}

	now := time.Now().UTC()
	if err := e.loans.UpdateAggregates(ctx, tx, loanID,
		agg.TotalAmountReceived, agg.NextPaymentDue, agg.ExpectedLastPayment,
		appliedSeq, now); err != nil {
		return MapError("ledger.recompute", err)
	}
	return nil
}
