package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/settlepay/internal/http/handlers/shared"
	"github.com/settlepay/internal/http/response"
	"github.com/settlepay/internal/repository"
	"github.com/settlepay/internal/service"

	"github.com/gin-gonic/gin"
)

var paymentVerifyErrorRules = []handlershared.MappedError{
	{Target: service.ErrPaymentNotFound, Code: response.CodeNotFound, Key: "error.payment_not_found"},
	{Target: service.ErrPaymentNotVerifiable, Code: response.CodeBadRequest, Key: "error.payment_not_verifiable"},
	{Target: service.ErrVerifierDisabled, Code: response.CodeServiceUnavailable, Key: "error.verifier_disabled"},
}

// GetAdminPayments 获取收款列表
func (h *Handler) GetAdminPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter, err := buildAdminPaymentFilter(c, page, pageSize)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	payments, total, err := h.PaymentAdminService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.payment_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, payments, response.BuildPagination(page, pageSize, total))
}

// GetAdminPayment 获取收款结算详情
func (h *Handler) GetAdminPayment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	payment, err := h.PaymentAdminService.Get(id)
	if err != nil {
		respondWithMappedError(c, err, paymentVerifyErrorRules, response.CodeInternal, "error.payment_fetch_failed")
		return
	}
	response.Success(c, payment)
}

// VerifyAdminPayment 人工重新派发链上核验
func (h *Handler) VerifyAdminPayment(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	payment, err := h.PaymentAdminService.RequestVerification(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, paymentVerifyErrorRules, response.CodeInternal, "error.verification_dispatch_failed")
		return
	}
	requestLog(c).Infow("admin_payment_verification_dispatched",
		"payment_id", payment.ID,
		"operator", operator,
		"tx_hash", payment.TransactionHash,
	)
	response.Success(c, gin.H{
		"payment_id": payment.ID,
		"dispatched": true,
	})
}

func parseOptionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func buildAdminPaymentFilter(c *gin.Context, page, pageSize int) (repository.PaymentListFilter, error) {
	swept, err := parseOptionalBool(c.Query("swept"))
	if err != nil {
		return repository.PaymentListFilter{}, err
	}
	verified, err := parseOptionalBool(c.Query("verified"))
	if err != nil {
		return repository.PaymentListFilter{}, err
	}
	createdFrom, createdTo, err := parseCreatedRange(c)
	if err != nil {
		return repository.PaymentListFilter{}, err
	}

	return repository.PaymentListFilter{
		Page:        page,
		PageSize:    pageSize,
		MerchantID:  strings.TrimSpace(c.Query("merchant_id")),
		Status:      strings.TrimSpace(c.Query("status")),
		Swept:       swept,
		Verified:    verified,
		Search:      strings.TrimSpace(c.Query("search")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	}, nil
}
