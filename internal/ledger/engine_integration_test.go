package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	ledgerrepos "github.com/yungbote/loanbook-backend/internal/data/repos/ledger"
	"github.com/yungbote/loanbook-backend/internal/data/repos/testutil"
	types "github.com/yungbote/loanbook-backend/internal/domain"
)

func newTestEngine(t *testing.T, db *gorm.DB, kind PolicyKind) *Engine {
	t.Helper()
	log := testutil.Logger(t)
	registry, err := NewRegistry(kind)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	engine, err := NewEngine(db, log,
		registry,
		ledgerrepos.NewLoanRepo(db, log),
		ledgerrepos.NewPaymentRecordRepo(db, log),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func loadLoan(t *testing.T, ctx context.Context, tx *gorm.DB, id uuid.UUID) *types.Loan {
	t.Helper()
	var loan types.Loan
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&loan).Error; err != nil {
		t.Fatalf("load loan: %v", err)
	}
	return &loan
}

func TestEngineRecomputeOnMutation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	engine := newTestEngine(t, db, PolicyChecklistStrict)

	loan := testutil.SeedLoan(t, ctx, tx, "engine recompute")
	testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-01-01", "100", true)
	testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-02-01", "100", false)
	testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-03-01", "100", false)

	if err := engine.OnPaymentMutation(ctx, tx, loan.ID, ChangeInsert); err != nil {
		t.Fatalf("OnPaymentMutation: %v", err)
	}

	got := loadLoan(t, ctx, tx, loan.ID)
	if !got.TotalAmountReceived.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total = %s, want 100", got.TotalAmountReceived)
	}
	if got.NextPaymentDue == nil || time.Time(*got.NextPaymentDue).Format("2006-01-02") != "2024-02-01" {
		t.Fatalf("next due = %v, want 2024-02-01", got.NextPaymentDue)
	}
	if got.ExpectedLastPayment == nil || time.Time(*got.ExpectedLastPayment).Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("expected last = %v, want 2024-03-01", got.ExpectedLastPayment)
	}
	if got.LastUpdated == nil {
		t.Fatal("last_updated not stamped")
	}
}

func TestEngineDeletionMovesNextDue(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	engine := newTestEngine(t, db, PolicyChecklistStrict)

	loan := testutil.SeedLoan(t, ctx, tx, "engine delete")
	testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-01-01", "100", true)
	feb := testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-02-01", "100", false)
	testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-03-01", "100", false)

	if err := engine.OnPaymentMutation(ctx, tx, loan.ID, ChangeInsert); err != nil {
		t.Fatalf("OnPaymentMutation: %v", err)
	}

	if err := tx.WithContext(ctx).Delete(&types.PaymentRecord{}, "id = ?", feb.ID).Error; err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if err := engine.OnPaymentMutation(ctx, tx, loan.ID, ChangeDelete); err != nil {
		t.Fatalf("OnPaymentMutation(delete): %v", err)
	}

	got := loadLoan(t, ctx, tx, loan.ID)
	if got.NextPaymentDue == nil || time.Time(*got.NextPaymentDue).Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("next due = %v, want 2024-03-01 after deleting the Feb record", got.NextPaymentDue)
	}
}

func TestEngineIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	engine := newTestEngine(t, db, PolicyCashReceivedInclusive)

	loan := testutil.SeedLoan(t, ctx, tx, "engine idempotent")
	testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-01-01", "12.34", false)

	if err := engine.OnPaymentMutation(ctx, tx, loan.ID, ChangeInsert); err != nil {
		t.Fatalf("first recompute: %v", err)
	}
	first := StoredAggregates(loadLoan(t, ctx, tx, loan.ID))

	if err := engine.OnPaymentMutation(ctx, tx, loan.ID, ChangeUpdate); err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	second := StoredAggregates(loadLoan(t, ctx, tx, loan.ID))

	if !first.Equal(second) {
		t.Fatalf("recompute not idempotent: %+v vs %+v", first, second)
	}
}

func TestEngineMissingLoanIsNoOp(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	engine := newTestEngine(t, db, PolicyChecklistStrict)

	if err := engine.OnPaymentMutation(ctx, tx, uuid.New(), ChangeDelete); err != nil {
		t.Fatalf("mutation against a deleted loan must be a no-op, got %v", err)
	}
}

func TestEngineStaleSeqRejected(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	engine := newTestEngine(t, db, PolicyChecklistStrict)

	loan := testutil.SeedLoan(t, ctx, tx, "engine stale seq")
	testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-01-01", "100", true)

	if err := engine.RecomputeAt(ctx, tx, loan.ID, 5); err != nil {
		t.Fatalf("RecomputeAt(5): %v", err)
	}
	got := loadLoan(t, ctx, tx, loan.ID)
	if got.AppliedMutationSeq != 5 {
		t.Fatalf("applied seq = %d, want 5", got.AppliedMutationSeq)
	}

	// A second payment lands but the recompute arriving for it is older than
	// what has already been applied; it must not run.
	testutil.SeedPayment(t, ctx, tx, loan.ID, "2024-02-01", "100", true)
	if err := engine.RecomputeAt(ctx, tx, loan.ID, 3); err != nil {
		t.Fatalf("RecomputeAt(3): %v", err)
	}
	got = loadLoan(t, ctx, tx, loan.ID)
	if !got.TotalAmountReceived.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("stale recompute was applied: total = %s", got.TotalAmountReceived)
	}
	if got.AppliedMutationSeq != 5 {
		t.Fatalf("stale recompute moved applied seq to %d", got.AppliedMutationSeq)
	}

	// The newer recompute catches up.
	if err := engine.RecomputeAt(ctx, tx, loan.ID, 6); err != nil {
		t.Fatalf("RecomputeAt(6): %v", err)
	}
	got = loadLoan(t, ctx, tx, loan.ID)
	if !got.TotalAmountReceived.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("total = %s, want 200 after catch-up", got.TotalAmountReceived)
	}
}

func TestEngineRequiresPolicy(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	if _, err := NewEngine(db, log, nil,
		ledgerrepos.NewLoanRepo(db, log),
		ledgerrepos.NewPaymentRecordRepo(db, log)); err == nil {
		t.Fatal("NewEngine without a policy registry must fail")
	}
}
