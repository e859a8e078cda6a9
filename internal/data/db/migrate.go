package db

import (
	types "github.com/yungbote/loanbook-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Loan{},
		&types.PaymentRecord{},
	)
}
