package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/loanbook-backend/internal/http/response"
	"github.com/yungbote/loanbook-backend/internal/ledger"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

// AdminHandler exposes the operational surface: policy inspection and
// switching, plus drift repair for one loan or the whole book.
type AdminHandler struct {
	log      *logger.Logger
	policies *ledger.Registry
	repairer *ledger.Repairer
}

func NewAdminHandler(log *logger.Logger, policies *ledger.Registry, repairer *ledger.Repairer) *AdminHandler {
	return &AdminHandler{
		log:      log.With("handler", "AdminHandler"),
		policies: policies,
		repairer: repairer,
	}
}

func (h *AdminHandler) GetPolicy(c *gin.Context) {
	response.RespondOK(c, gin.H{"policy": string(h.policies.Active())})
}

type setPolicyRequest struct {
	Policy string `json:"policy" binding:"required"`
}

// SetPolicy switches the accounting policy and re-derives every loan before
// responding, so a 200 means the whole book already reflects the new policy.
func (h *AdminHandler) SetPolicy(c *gin.Context) {
	var req setPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	kind, err := ledger.ParsePolicyKind(req.Policy)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_policy", err)
		return
	}

	reports, err := h.repairer.SetPolicy(c.Request.Context(), kind)
	if err != nil {
		h.log.Error("SetPolicy failed", "error", err, "policy", req.Policy)
		response.RespondError(c, http.StatusInternalServerError, "set_policy_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"policy":   string(kind),
		"repaired": len(reports),
	})
}

func (h *AdminHandler) RepairLoan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_loan_id", err)
		return
	}

	report, err := h.repairer.Repair(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.RespondError(c, http.StatusNotFound, "loan_not_found", err)
		return
	}
	if err != nil {
		h.log.Error("RepairLoan failed", "error", err, "loan_id", id)
		response.RespondError(c, http.StatusInternalServerError, "repair_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}

func (h *AdminHandler) RepairAll(c *gin.Context) {
	reports, err := h.repairer.RepairAll(c.Request.Context())
	if err != nil {
		h.log.Error("RepairAll failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "repair_failed", err)
		return
	}

	drifted := make([]*ledger.Report, 0)
	for _, report := range reports {
		if report.HadDrift {
			drifted = append(drifted, report)
		}
	}
	response.RespondOK(c, gin.H{
		"checked": len(reports),
		"drifted": drifted,
	})
}
