package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/loanbook-backend/internal/data/repos"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

// Report describes the outcome of repairing one loan. HadDrift means the
// stored aggregates disagreed with a fresh Calculate, which indicates a prior
// violation of the recompute atomicity contract or a manual edit that
// bypassed the engine.
type Report struct {
	LoanID    uuid.UUID  `json:"loan_id"`
	HadDrift  bool       `json:"had_drift"`
	OldValues Aggregates `json:"old_values"`
	NewValues Aggregates `json:"new_values"`
}

// Repairer forces full recomputes outside the mutation-triggered path: drift
// audits, recovery from manual edits, and re-deriving every loan after a
// policy switch.
type Repairer struct {
	db        *gorm.DB
	log       *logger.Logger
	policies  *Registry
	loans     repos.LoanRepo
	payments  repos.PaymentRecordRepo
	workers   int
	batchSize int
}

func NewRepairer(db *gorm.DB, baseLog *logger.Logger, policies *Registry, loans repos.LoanRepo, payments repos.PaymentRecordRepo, workers int) (*Repairer, error) {
	if db == nil || loans == nil || payments == nil {
		return nil, fmt.Errorf("ledger repairer requires db and repos")
	}
	if policies == nil || !policies.Active().Valid() {
		return nil, fmt.Errorf("%w: repairer refuses to start", ErrPolicyMisconfigured)
	}
	if workers <= 0 {
		workers = 4
	}
	return &Repairer{
		db:        db,
		log:       baseLog.With("service", "LedgerRepairer"),
		policies:  policies,
		loans:     loans,
		payments:  payments,
		workers:   workers,
		batchSize: 500,
	}, nil
}

// Repair recomputes one loan's aggregates in its own transaction, under the
// same row lock the engine takes, and reports whether the stored values had
// drifted. Repairing an already consistent loan is a no-op write of identical
// values, so running it twice in a row yields identical stored aggregates.
func (r *Repairer) Repair(ctx context.Context, loanID uuid.UUID) (*Report, error) {
	var report *Report
	err := RunInTx(ctx, r.db, r.log, "ledger.repair", func(tx *gorm.DB) error {
		loan, err := r.loans.GetByIDForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}

		records, err := r.payments.GetByLoanID(ctx, tx, loanID)
		if err != nil {
			return err
		}

		fresh, err := Calculate(r.policies.Active(), records)
		if err != nil {
			return err
		}

		stored := StoredAggregates(loan)
		report = &Report{
			LoanID:    loanID,
			HadDrift:  !stored.Equal(fresh),
			OldValues: stored,
			NewValues: fresh,
		}

		now := time.Now().UTC()
		return r.loans.UpdateAggregates(ctx, tx, loanID,
			fresh.TotalAmountReceived, fresh.NextPaymentDue, fresh.ExpectedLastPayment,
			loan.AppliedMutationSeq, now)
	})
	if err != nil {
		return nil, err
	}
	if report.HadDrift {
		// Data-integrity event: something wrote around the engine.
		r.log.Warn("aggregate drift corrected",
			"loan_id", loanID,
			"old_total", report.OldValues.TotalAmountReceived,
			"new_total", report.NewValues.TotalAmountReceived)
	}
	return report, nil
}

// RepairAll repairs every loan. Loans are processed independently and out of
// order on a bounded worker group; each repair is atomic on its own, so the
// pass is safe to run concurrently with live traffic.
func (r *Repairer) RepairAll(ctx context.Context) ([]*Report, error) {
	ids, err := r.allLoanIDs(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	reports := make([]*Report, 0, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			report, err := r.Repair(gctx, id)
			if err != nil {
				return fmt.Errorf("repair loan %s: %w", id, err)
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}

	drifted := 0
	for _, report := range reports {
		if report.HadDrift {
			drifted++
		}
	}
	r.log.Info("repair pass complete", "loans", len(reports), "drifted", drifted)
	return reports, nil
}

// SetPolicy switches the active accounting policy and immediately re-derives
// every loan under the new policy. The switch is never left partially
// applied: a failed repair pass surfaces so the operator can rerun it.
func (r *Repairer) SetPolicy(ctx context.Context, kind PolicyKind) ([]*Report, error) {
	if err := r.policies.Set(kind); err != nil {
		return nil, err
	}
	r.log.Info("accounting policy changed, repairing all loans", "policy", string(kind))
	return r.RepairAll(ctx)
}

func (r *Repairer) allLoanIDs(ctx context.Context) ([]uuid.UUID, error) {
	var all []uuid.UUID
	after := uuid.Nil
	for {
		batch, err := r.loans.ListIDsAfter(ctx, nil, after, r.batchSize)
		if err != nil {
			return nil, MapError("ledger.repair_all", err)
		}
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)
		after = batch[len(batch)-1]
	}
}
