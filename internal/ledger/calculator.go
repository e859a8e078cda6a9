package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	types "github.com/yungbote/loanbook-backend/internal/domain"
)

// Aggregates are the derived fields cached on a loan row: a pure function of
// the loan's current payment set and the active policy.
type Aggregates struct {
	TotalAmountReceived decimal.Decimal `json:"total_amount_received"`
	NextPaymentDue      *datatypes.Date `json:"next_payment_due,omitempty"`
	ExpectedLastPayment *datatypes.Date `json:"expected_last_payment,omitempty"`
}

// Calculate derives a loan's aggregates from its complete payment set. It
// always receives the full set rather than a delta: the full-set scan keeps
// the function pure and idempotent, so replayed or repeated recomputes can
// never compound an error. Record counts per loan are small, so the O(n) scan
// is not worth optimizing into incremental accumulation.
//
// total_amount_received sums received_amount over records the policy counts.
// next_payment_due is the earliest due_date among unreceived records.
// expected_last_payment is the latest due_date across all records.
func Calculate(policy PolicyKind, records []*types.PaymentRecord) (Aggregates, error) {
	if !policy.Valid() {
		return Aggregates{}, fmt.Errorf("%w: %q", ErrPolicyMisconfigured, string(policy))
	}

	agg := Aggregates{TotalAmountReceived: decimal.Zero}
	for _, record := range records {
		if record == nil {
			return Aggregates{}, fmt.Errorf("%w: nil record", ErrMalformedRecord)
		}
		due := time.Time(record.DueDate)
		if due.IsZero() {
			return Aggregates{}, fmt.Errorf("%w: payment %s has no due date", ErrMalformedRecord, record.ID)
		}
		if record.ReceivedAmount.IsNegative() {
			return Aggregates{}, fmt.Errorf("%w: payment %s has negative received amount %s", ErrMalformedRecord, record.ID, record.ReceivedAmount)
		}

		if policy.Counts(record) {
			agg.TotalAmountReceived = agg.TotalAmountReceived.Add(record.ReceivedAmount)
		}
		if !record.IsReceived {
			if agg.NextPaymentDue == nil || due.Before(time.Time(*agg.NextPaymentDue)) {
				d := datatypes.Date(due)
				agg.NextPaymentDue = &d
			}
		}
		if agg.ExpectedLastPayment == nil || due.After(time.Time(*agg.ExpectedLastPayment)) {
			d := datatypes.Date(due)
			agg.ExpectedLastPayment = &d
		}
	}
	return agg, nil
}

// StoredAggregates reads the currently cached derived fields off a loan row,
// for comparison against a fresh Calculate during repair.
func StoredAggregates(loan *types.Loan) Aggregates {
	return Aggregates{
		TotalAmountReceived: loan.TotalAmountReceived,
		NextPaymentDue:      loan.NextPaymentDue,
		ExpectedLastPayment: loan.ExpectedLastPayment,
	}
}

func (a Aggregates) Equal(b Aggregates) bool {
	return a.TotalAmountReceived.Equal(b.TotalAmountReceived) &&
		sameDate(a.NextPaymentDue, b.NextPaymentDue) &&
		sameDate(a.ExpectedLastPayment, b.ExpectedLastPayment)
}

func sameDate(a, b *datatypes.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	const layout = "2006-01-02"
	return time.Time(*a).Format(layout) == time.Time(*b).Format(layout)
}
