package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Loan is the parent aggregate root of the ledger. The three derived columns
// (total_amount_received, next_payment_due, expected_last_payment) are cached
// projections of the loan's payment records and are written exclusively through
// LoanRepo.UpdateAggregates; every other writer leaves them untouched.
type Loan struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BorrowerName string          `gorm:"column:borrower_name;not null" json:"borrower_name"`
	Principal    decimal.Decimal `gorm:"column:principal;type:numeric(20,4);not null;default:0" json:"principal"`

	TotalAmountReceived decimal.Decimal `gorm:"column:total_amount_received;type:numeric(20,4);not null;default:0" json:"total_amount_received"`
	NextPaymentDue      *datatypes.Date `gorm:"column:next_payment_due;type:date" json:"next_payment_due,omitempty"`
	ExpectedLastPayment *datatypes.Date `gorm:"column:expected_last_payment;type:date" json:"expected_last_payment,omitempty"`

	LastUpdated        *datatypes.Date `gorm:"column:last_updated;type:date" json:"last_updated,omitempty"`
	AppliedMutationSeq int64           `gorm:"column:applied_mutation_seq;not null;default:0" json:"applied_mutation_seq"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Loan) TableName() string { return "loan" }
