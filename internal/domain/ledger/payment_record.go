package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentRecord is a detail row of a loan: one scheduled installment and
// whatever cash has been recorded against it so far. IsReceived is a checklist
// flag set by a human action and is independent of ReceivedAmount being
// non-zero; which of the two drives the loan totals depends on the active
// accounting policy.
type PaymentRecord struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LoanID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"loan_id"`
	Loan           *Loan           `gorm:"constraint:OnDelete:CASCADE;foreignKey:LoanID;references:ID" json:"loan,omitempty"`
	DueDate        datatypes.Date  `gorm:"column:due_date;type:date;not null" json:"due_date"`
	ReceivedAmount decimal.Decimal `gorm:"column:received_amount;type:numeric(20,4);not null;default:0" json:"received_amount"`
	IsReceived     bool            `gorm:"column:is_received;not null;default:false" json:"is_received"`
	Note           string          `gorm:"column:note" json:"note,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PaymentRecord) TableName() string { return "payment_record" }
