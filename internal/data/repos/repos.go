package repos

import (
	"github.com/yungbote/loanbook-backend/internal/data/repos/ledger"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type LoanRepo = ledger.LoanRepo
type PaymentRecordRepo = ledger.PaymentRecordRepo

var NewLoanRepo = ledger.NewLoanRepo
var NewPaymentRecordRepo = ledger.NewPaymentRecordRepo

// Set bundles every repo the application wires.
type Set struct {
	Loan          LoanRepo
	PaymentRecord PaymentRecordRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Loan:          NewLoanRepo(db, log),
		PaymentRecord: NewPaymentRecordRepo(db, log),
	}
}
