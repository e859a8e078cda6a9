package domain

import (
	"github.com/yungbote/loanbook-backend/internal/domain/ledger"
)

type Loan = ledger.Loan
type PaymentRecord = ledger.PaymentRecord
