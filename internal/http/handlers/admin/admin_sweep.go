package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/settlepay/internal/http/handlers/shared"
	"github.com/settlepay/internal/http/response"
	"github.com/settlepay/internal/i18n"
	"github.com/settlepay/internal/repository"
	"github.com/settlepay/internal/service"

	"github.com/gin-gonic/gin"
)

// SweepRequest 归集请求
type SweepRequest struct {
	Limit  int  `json:"limit"`
	DryRun bool `json:"dry_run"`
}

var sweepErrorRules = []handlershared.MappedError{
	{Target: service.ErrSweepInProgress, Code: response.CodeConflict, Key: "error.sweep_in_progress"},
	{Target: service.ErrSweepLimitInvalid, Code: response.CodeBadRequest, Key: "error.sweep_limit_invalid"},
	{Target: service.ErrVaultNotConfigured, Code: response.CodeServiceUnavailable, Key: "error.vault_not_configured"},
}

// TriggerSweep 触发一次归集
func (h *Handler) TriggerSweep(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	var req SweepRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
	}

	result, err := h.SweepService.Sweep(c.Request.Context(), service.SweepInput{
		Limit:    req.Limit,
		DryRun:   req.DryRun,
		Operator: operator,
	})
	if err != nil {
		if result != nil {
			// 运行中途失败时仍返回已完成部分，便于人工对账
			requestLog(c).Errorw("admin_sweep_failed", "run_id", result.RunID, "operator", operator, "error", err)
			response.ErrorWithData(c, response.CodeInternal, i18n.T(i18n.ResolveLocale(c), "error.sweep_failed"), gin.H{"result": result})
			return
		}
		respondWithMappedError(c, err, sweepErrorRules, response.CodeInternal, "error.sweep_failed")
		return
	}
	response.Success(c, result)
}

// GetSweepAuditLogs 获取归集审计日志
func (h *Handler) GetSweepAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	createdFrom, createdTo, err := parseCreatedRange(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.time_range_invalid", err)
		return
	}

	logs, total, err := h.SweepAuditService.List(repository.SweepAuditListFilter{
		Page:        page,
		PageSize:    pageSize,
		RunID:       strings.TrimSpace(c.Query("run_id")),
		Action:      strings.TrimSpace(c.Query("action")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.sweep_audit_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, logs, response.BuildPagination(page, pageSize, total))
}
