package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/loanbook-backend/internal/domain"
	"github.com/yungbote/loanbook-backend/internal/http/response"
	"github.com/yungbote/loanbook-backend/internal/ledger"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

type LoanHandler struct {
	log     *logger.Logger
	service *ledger.Service
}

func NewLoanHandler(log *logger.Logger, service *ledger.Service) *LoanHandler {
	return &LoanHandler{
		log:     log.With("handler", "LoanHandler"),
		service: service,
	}
}

type createLoanRequest struct {
	BorrowerName string `json:"borrower_name" binding:"required"`
	Principal    string `json:"principal"`
}

type paymentRequest struct {
	DueDate        string `json:"due_date" binding:"required"`
	ReceivedAmount string `json:"received_amount"`
	IsReceived     bool   `json:"is_received"`
	Note           string `json:"note"`
}

func (h *LoanHandler) CreateLoan(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	principal := decimal.Zero
	if req.Principal != "" {
		parsed, err := decimal.NewFromString(req.Principal)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_principal", err)
			return
		}
		principal = parsed
	}

	loan, err := h.service.CreateLoan(c.Request.Context(), &types.Loan{
		BorrowerName: req.BorrowerName,
		Principal:    principal,
	})
	if err != nil {
		h.log.Error("CreateLoan failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "create_loan_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"loan": loan})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_loan_id", err)
		return
	}

	loan, err := h.service.GetLoan(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.RespondError(c, http.StatusNotFound, "loan_not_found", err)
		return
	}
	if err != nil {
		h.log.Error("GetLoan failed", "error", err, "loan_id", id)
		response.RespondError(c, http.StatusInternalServerError, "get_loan_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"loan": loan})
}

func (h *LoanHandler) DeleteLoan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_loan_id", err)
		return
	}

	if err := h.service.DeleteLoan(c.Request.Context(), id); err != nil {
		h.log.Error("DeleteLoan failed", "error", err, "loan_id", id)
		response.RespondError(c, http.StatusInternalServerError, "delete_loan_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": id})
}

func (h *LoanHandler) ListPayments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_loan_id", err)
		return
	}

	records, err := h.service.ListPayments(c.Request.Context(), id)
	if err != nil {
		h.log.Error("ListPayments failed", "error", err, "loan_id", id)
		response.RespondError(c, http.StatusInternalServerError, "list_payments_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"payments": records})
}

func (h *LoanHandler) AddPayment(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_loan_id", err)
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	record, err := req.toRecord(loanID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_payment", err)
		return
	}

	created, err := h.service.AddPayment(c.Request.Context(), record)
	if err != nil {
		h.respondMutationError(c, "add_payment_failed", err, loanID)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": created})
}

func (h *LoanHandler) UpdatePayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_payment_id", err)
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	existing, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.RespondError(c, http.StatusNotFound, "payment_not_found", err)
		return
	}
	if err != nil {
		h.log.Error("UpdatePayment load failed", "error", err, "payment_id", paymentID)
		response.RespondError(c, http.StatusInternalServerError, "update_payment_failed", err)
		return
	}

	updated, err := req.toRecord(existing.LoanID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_payment", err)
		return
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	saved, err := h.service.UpdatePayment(c.Request.Context(), updated)
	if err != nil {
		h.respondMutationError(c, "update_payment_failed", err, existing.LoanID)
		return
	}
	response.RespondOK(c, gin.H{"payment": saved})
}

type setReceivedRequest struct {
	Received *bool `json:"received" binding:"required"`
}

func (h *LoanHandler) SetPaymentReceived(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_payment_id", err)
		return
	}

	var req setReceivedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	record, err := h.service.SetPaymentReceived(c.Request.Context(), paymentID, *req.Received)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.RespondError(c, http.StatusNotFound, "payment_not_found", err)
		return
	}
	if err != nil {
		h.respondMutationError(c, "set_received_failed", err, paymentID)
		return
	}
	response.RespondOK(c, gin.H{"payment": record})
}

func (h *LoanHandler) RemovePayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_payment_id", err)
		return
	}

	err = h.service.RemovePayment(c.Request.Context(), paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.RespondError(c, http.StatusNotFound, "payment_not_found", err)
		return
	}
	if err != nil {
		h.respondMutationError(c, "remove_payment_failed", err, paymentID)
		return
	}
	response.RespondOK(c, gin.H{"deleted": paymentID})
}

func (r paymentRequest) toRecord(loanID uuid.UUID) (*types.PaymentRecord, error) {
	day, err := time.Parse("2006-01-02", r.DueDate)
	if err != nil {
		return nil, err
	}
	amount := decimal.Zero
	if r.ReceivedAmount != "" {
		amount, err = decimal.NewFromString(r.ReceivedAmount)
		if err != nil {
			return nil, err
		}
	}
	return &types.PaymentRecord{
		LoanID:         loanID,
		DueDate:        datatypes.Date(day),
		ReceivedAmount: amount,
		IsReceived:     r.IsReceived,
		Note:           r.Note,
	}, nil
}

func (h *LoanHandler) respondMutationError(c *gin.Context, code string, err error, id uuid.UUID) {
	if errors.Is(err, ledger.ErrMalformedRecord) {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return
	}
	h.log.Error("payment mutation failed", "error", err, "id", id)
	response.RespondError(c, http.StatusInternalServerError, code, err)
}
