package queue

import (
	"encoding/json"

	"github.com/settlepay/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentVerify 链上核验任务
	TaskPaymentVerify = constants.TaskPaymentVerify
	// TaskPaymentSettled 到账事件通知任务
	TaskPaymentSettled = constants.TaskPaymentSettled
)

// PaymentVerifyPayload 链上核验任务载荷
type PaymentVerifyPayload struct {
	PaymentID string `json:"payment_id"`
	TxHash    string `json:"tx_hash"`
	Amount    string `json:"amount"`
}

// PaymentSettledPayload 到账事件载荷
type PaymentSettledPayload struct {
	PaymentID      string `json:"payment_id"`
	MerchantID     string `json:"merchant_id"`
	Status         string `json:"status"`
	ExpectedAmount string `json:"expected_amount"`
	ReceivedAmount string `json:"received_amount"`
	AssetCode      string `json:"asset_code"`
	AssetIssuer    string `json:"asset_issuer"`
	TxHash         string `json:"tx_hash"`
	ConfirmedAt    int64  `json:"confirmed_at"`
}

// NewPaymentVerifyTask 创建链上核验任务
func NewPaymentVerifyTask(payload PaymentVerifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentVerify, body), nil
}

// NewPaymentSettledTask 创建到账事件任务
func NewPaymentSettledTask(payload PaymentSettledPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentSettled, body), nil
}
