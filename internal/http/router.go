package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/loanbook-backend/internal/http/handlers"
	httpMW "github.com/yungbote/loanbook-backend/internal/http/middleware"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	LoanHandler   *httpH.LoanHandler
	AdminHandler  *httpH.AdminHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Loans
		if cfg.LoanHandler != nil {
			api.POST("/loans", cfg.LoanHandler.CreateLoan)
			api.GET("/loans/:id", cfg.LoanHandler.GetLoan)
			api.DELETE("/loans/:id", cfg.LoanHandler.DeleteLoan)

			api.GET("/loans/:id/payments", cfg.LoanHandler.ListPayments)
			api.POST("/loans/:id/payments", cfg.LoanHandler.AddPayment)
			api.PUT("/payments/:id", cfg.LoanHandler.UpdatePayment)
			api.PATCH("/payments/:id/received", cfg.LoanHandler.SetPaymentReceived)
			api.DELETE("/payments/:id", cfg.LoanHandler.RemovePayment)
		}

		// Admin
		if cfg.AdminHandler != nil {
			admin := api.Group("/admin")
			admin.GET("/policy", cfg.AdminHandler.GetPolicy)
			admin.PUT("/policy", cfg.AdminHandler.SetPolicy)
			admin.POST("/loans/:id/repair", cfg.AdminHandler.RepairLoan)
			admin.POST("/repair", cfg.AdminHandler.RepairAll)
		}
	}

	return r
}
