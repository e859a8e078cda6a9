package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/loanbook-backend/internal/domain"
)

func SeedLoan(tb testing.TB, ctx context.Context, tx *gorm.DB, borrower string) *types.Loan {
	tb.Helper()
	loan := &types.Loan{
		ID:                  uuid.New(),
		BorrowerName:        borrower,
		Principal:           decimal.NewFromInt(1000),
		TotalAmountReceived: decimal.Zero,
	}
	if err := tx.WithContext(ctx).Create(loan).Error; err != nil {
		tb.Fatalf("seed loan: %v", err)
	}
	return loan
}

func SeedPayment(tb testing.TB, ctx context.Context, tx *gorm.DB, loanID uuid.UUID, due string, amount string, received bool) *types.PaymentRecord {
	tb.Helper()
	day, err := time.Parse("2006-01-02", due)
	if err != nil {
		tb.Fatalf("parse due date %q: %v", due, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		tb.Fatalf("parse amount %q: %v", amount, err)
	}
	record := &types.PaymentRecord{
		ID:             uuid.New(),
		LoanID:         loanID,
		DueDate:        datatypes.Date(day),
		ReceivedAmount: amt,
		IsReceived:     received,
	}
	if err := tx.WithContext(ctx).Create(record).Error; err != nil {
		tb.Fatalf("seed payment: %v", err)
	}
	return record
}
