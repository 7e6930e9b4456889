package service

import (
	"context"
	"strings"

	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/queue"
	"github.com/settlepay/internal/repository"
)

// PaymentAdminService 运维端收款查询与人工操作
type PaymentAdminService struct {
	paymentRepo repository.PaymentRepository
	dispatcher  SettlementDispatcher
}

// NewPaymentAdminService 创建运维端收款服务
func NewPaymentAdminService(paymentRepo repository.PaymentRepository, dispatcher SettlementDispatcher) *PaymentAdminService {
	return &PaymentAdminService{
		paymentRepo: paymentRepo,
		dispatcher:  dispatcher,
	}
}

// List 收款列表
func (s *PaymentAdminService) List(filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	return s.paymentRepo.ListAdmin(filter)
}

// Get 收款详情
func (s *PaymentAdminService) Get(id string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// RequestVerification 人工重新派发核验
// 仅限已到账、已记录入账交易且尚未核验成功的收款。
func (s *PaymentAdminService) RequestVerification(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	eligible := false
	for _, status := range constants.SweepEligibleStatuses {
		if payment.Status == status {
			eligible = true
			break
		}
	}
	if !eligible || payment.OnchainVerified || strings.TrimSpace(payment.TransactionHash) == "" {
		return payment, ErrPaymentNotVerifiable
	}
	if s.dispatcher == nil {
		return payment, ErrVerifierDisabled
	}
	if err := s.dispatcher.DispatchVerification(ctx, queue.PaymentVerifyPayload{
		PaymentID: payment.ID,
		TxHash:    payment.TransactionHash,
		Amount:    payment.ExpectedAmount,
	}); err != nil {
		return payment, err
	}
	return payment, nil
}
