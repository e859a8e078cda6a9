package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	types "github.com/yungbote/loanbook-backend/internal/domain"
)

func paymentOn(t *testing.T, due string, amount string, received bool) *types.PaymentRecord {
	t.Helper()
	day, err := time.Parse("2006-01-02", due)
	if err != nil {
		t.Fatalf("parse due date %q: %v", due, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("parse amount %q: %v", amount, err)
	}
	return &types.PaymentRecord{
		ID:             uuid.New(),
		LoanID:         uuid.New(),
		DueDate:        datatypes.Date(day),
		ReceivedAmount: amt,
		IsReceived:     received,
	}
}

func dateString(t *testing.T, d *datatypes.Date) string {
	t.Helper()
	if d == nil {
		return ""
	}
	return time.Time(*d).Format("2006-01-02")
}

func TestCalculateChecklistStrict(t *testing.T) {
	records := []*types.PaymentRecord{
		paymentOn(t, "2024-01-01", "100", true),
		paymentOn(t, "2024-02-01", "100", false),
		paymentOn(t, "2024-03-01", "100", false),
	}

	agg, err := Calculate(PolicyChecklistStrict, records)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !agg.TotalAmountReceived.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total = %s, want 100", agg.TotalAmountReceived)
	}
	if got := dateString(t, agg.NextPaymentDue); got != "2024-02-01" {
		t.Fatalf("next due = %q, want 2024-02-01", got)
	}
	if got := dateString(t, agg.ExpectedLastPayment); got != "2024-03-01" {
		t.Fatalf("expected last = %q, want 2024-03-01", got)
	}
}

func TestCalculateCashReceivedInclusive(t *testing.T) {
	records := []*types.PaymentRecord{
		paymentOn(t, "2024-01-01", "100", true),
		paymentOn(t, "2024-02-01", "50", false),
		paymentOn(t, "2024-03-01", "100", false),
	}

	// No cash recorded yet against the final installment; the unreceived
	// partial on the second one still counts under cash accounting.
	records[2].ReceivedAmount = decimal.Zero

	agg, err := Calculate(PolicyCashReceivedInclusive, records)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !agg.TotalAmountReceived.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("total = %s, want 150", agg.TotalAmountReceived)
	}
	if got := dateString(t, agg.NextPaymentDue); got != "2024-02-01" {
		t.Fatalf("next due = %q, want 2024-02-01", got)
	}
	if got := dateString(t, agg.ExpectedLastPayment); got != "2024-03-01" {
		t.Fatalf("expected last = %q, want 2024-03-01", got)
	}
}

func TestCalculateEmptyLoan(t *testing.T) {
	for _, policy := range []PolicyKind{PolicyChecklistStrict, PolicyCashReceivedInclusive} {
		agg, err := Calculate(policy, nil)
		if err != nil {
			t.Fatalf("Calculate(%s): %v", policy, err)
		}
		if !agg.TotalAmountReceived.Equal(decimal.Zero) {
			t.Fatalf("total = %s, want 0", agg.TotalAmountReceived)
		}
		if agg.NextPaymentDue != nil {
			t.Fatalf("next due = %v, want absent", agg.NextPaymentDue)
		}
		if agg.ExpectedLastPayment != nil {
			t.Fatalf("expected last = %v, want absent", agg.ExpectedLastPayment)
		}
	}
}

func TestCalculateAllReceived(t *testing.T) {
	records := []*types.PaymentRecord{
		paymentOn(t, "2024-01-01", "100", true),
		paymentOn(t, "2024-02-01", "100", true),
		paymentOn(t, "2024-03-01", "100", true),
	}

	agg, err := Calculate(PolicyChecklistStrict, records)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !agg.TotalAmountReceived.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("total = %s, want 300", agg.TotalAmountReceived)
	}
	if agg.NextPaymentDue != nil {
		t.Fatalf("next due = %v, want absent when everything is received", agg.NextPaymentDue)
	}
	if got := dateString(t, agg.ExpectedLastPayment); got != "2024-03-01" {
		t.Fatalf("expected last = %q, want 2024-03-01", got)
	}
}

func TestCalculateDuplicateDueDates(t *testing.T) {
	records := []*types.PaymentRecord{
		paymentOn(t, "2024-02-01", "40", false),
		paymentOn(t, "2024-02-01", "60", false),
	}

	agg, err := Calculate(PolicyCashReceivedInclusive, records)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got := dateString(t, agg.NextPaymentDue); got != "2024-02-01" {
		t.Fatalf("next due = %q, want 2024-02-01", got)
	}
	if got := dateString(t, agg.ExpectedLastPayment); got != "2024-02-01" {
		t.Fatalf("expected last = %q, want 2024-02-01", got)
	}
	if !agg.TotalAmountReceived.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total = %s, want 100", agg.TotalAmountReceived)
	}
}

// The policy predicate only touches the money total; both date aggregates
// must be identical across policies for the same record set.
func TestPolicyIsolation(t *testing.T) {
	records := []*types.PaymentRecord{
		paymentOn(t, "2024-01-01", "100", true),
		paymentOn(t, "2024-02-01", "50", false),
		paymentOn(t, "2024-03-01", "0", false),
	}

	strict, err := Calculate(PolicyChecklistStrict, records)
	if err != nil {
		t.Fatalf("Calculate(strict): %v", err)
	}
	inclusive, err := Calculate(PolicyCashReceivedInclusive, records)
	if err != nil {
		t.Fatalf("Calculate(inclusive): %v", err)
	}

	if dateString(t, strict.NextPaymentDue) != dateString(t, inclusive.NextPaymentDue) {
		t.Fatalf("next due differs across policies: %q vs %q",
			dateString(t, strict.NextPaymentDue), dateString(t, inclusive.NextPaymentDue))
	}
	if dateString(t, strict.ExpectedLastPayment) != dateString(t, inclusive.ExpectedLastPayment) {
		t.Fatalf("expected last differs across policies: %q vs %q",
			dateString(t, strict.ExpectedLastPayment), dateString(t, inclusive.ExpectedLastPayment))
	}
	if strict.TotalAmountReceived.Equal(inclusive.TotalAmountReceived) {
		t.Fatalf("totals unexpectedly equal (%s); the fixture should split them", strict.TotalAmountReceived)
	}
}

func TestCalculateIsPure(t *testing.T) {
	records := []*types.PaymentRecord{
		paymentOn(t, "2024-01-01", "100.25", true),
		paymentOn(t, "2024-02-01", "99.75", false),
	}

	first, err := Calculate(PolicyChecklistStrict, records)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	second, err := Calculate(PolicyChecklistStrict, records)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("repeated calculation diverged: %+v vs %+v", first, second)
	}
}

func TestCalculateExactDecimalSum(t *testing.T) {
	// 0.1 + 0.2 style inputs that drift under float64.
	records := []*types.PaymentRecord{
		paymentOn(t, "2024-01-01", "0.10", true),
		paymentOn(t, "2024-02-01", "0.20", true),
		paymentOn(t, "2024-03-01", "0.30", true),
	}

	agg, err := Calculate(PolicyChecklistStrict, records)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	want, _ := decimal.NewFromString("0.60")
	if !agg.TotalAmountReceived.Equal(want) {
		t.Fatalf("total = %s, want exactly 0.60", agg.TotalAmountReceived)
	}
}

func TestCalculateRejectsUnknownPolicy(t *testing.T) {
	_, err := Calculate(PolicyKind(""), nil)
	if !errors.Is(err, ErrPolicyMisconfigured) {
		t.Fatalf("err = %v, want ErrPolicyMisconfigured", err)
	}
}

func TestCalculateRejectsMalformedRecords(t *testing.T) {
	negative := paymentOn(t, "2024-01-01", "-5", true)
	if _, err := Calculate(PolicyChecklistStrict, []*types.PaymentRecord{negative}); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("negative amount: err = %v, want ErrMalformedRecord", err)
	}

	undated := paymentOn(t, "2024-01-01", "5", true)
	undated.DueDate = datatypes.Date{}
	if _, err := Calculate(PolicyChecklistStrict, []*types.PaymentRecord{undated}); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("zero due date: err = %v, want ErrMalformedRecord", err)
	}
}
