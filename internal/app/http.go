package app

import (
	apphttp "github.com/yungbote/loanbook-backend/internal/http"
	httpH "github.com/yungbote/loanbook-backend/internal/http/handlers"
)

type httpServer = apphttp.Server

func wireHTTP(a *App) *httpServer {
	loanHandler := httpH.NewLoanHandler(a.Log, a.Service)
	adminHandler := httpH.NewAdminHandler(a.Log, a.Policies, a.Repairer)
	healthHandler := httpH.NewHealthHandler()

	return apphttp.NewServer(apphttp.RouterConfig{
		Log:           a.Log,
		LoanHandler:   loanHandler,
		AdminHandler:  adminHandler,
		HealthHandler: healthHandler,
	})
}
