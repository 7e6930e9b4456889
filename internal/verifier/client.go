package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrConfigInvalid    = errors.New("verifier config invalid")
	ErrRequestFailed    = errors.New("verifier request failed")
	ErrResponseInvalid  = errors.New("verifier response invalid")
	ErrReceiptNotFound  = errors.New("verifier receipt not found")
	ErrVerificationFail = errors.New("verifier rejected payment")
)

// 回执状态
const (
	ReceiptPending = "pending"
	ReceiptSuccess = "success"
	ReceiptFailed  = "failed"
)

// Request 核验请求
type Request struct {
	ContractID string `json:"contract_id"`
	PaymentID  string `json:"payment_id"`
	TxHash     string `json:"tx_hash"`
	Amount     int64  `json:"amount"` // 最小单位（stroops）
}

// Receipt 提交回执
type Receipt struct {
	ID     string `json:"receipt_id"`
	Status string `json:"status"`
}

// ReceiptStatus 回执状态
type ReceiptStatus struct {
	ID     string `json:"receipt_id"`
	Status string `json:"status"`
	TxHash string `json:"tx_hash"`
	Error  string `json:"error"`
}

// IsFinal 是否为终态
func (s ReceiptStatus) IsFinal() bool {
	return s.Status == ReceiptSuccess || s.Status == ReceiptFailed
}

// Client 核验合约网关
type Client interface {
	Submit(ctx context.Context, req Request) (Receipt, error)
	Status(ctx context.Context, receiptID string) (ReceiptStatus, error)
}

// Config HTTP 网关配置
type Config struct {
	Endpoint   string
	AuthToken  string
	ContractID string
	Timeout    time.Duration
}

// HTTPClient 基于 HTTP JSON 的网关实现
type HTTPClient struct {
	endpoint   string
	authToken  string
	contractID string
	http       *http.Client
}

// NewHTTPClient 创建网关客户端
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrConfigInvalid)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		endpoint:   endpoint,
		authToken:  strings.TrimSpace(cfg.AuthToken),
		contractID: strings.TrimSpace(cfg.ContractID),
		http:       &http.Client{Timeout: timeout},
	}, nil
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

// Submit 提交核验请求
func (c *HTTPClient) Submit(ctx context.Context, req Request) (Receipt, error) {
	if strings.TrimSpace(req.PaymentID) == "" || strings.TrimSpace(req.TxHash) == "" || req.Amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: payment_id, tx_hash and positive amount are required", ErrConfigInvalid)
	}
	if req.ContractID == "" {
		req.ContractID = c.contractID
	}
	var receipt Receipt
	if err := c.do(ctx, http.MethodPost, "/api/v1/verifications", req, &receipt); err != nil {
		return Receipt{}, err
	}
	if strings.TrimSpace(receipt.ID) == "" {
		return Receipt{}, fmt.Errorf("%w: empty receipt id", ErrResponseInvalid)
	}
	return receipt, nil
}

// Status 查询回执状态
func (c *HTTPClient) Status(ctx context.Context, receiptID string) (ReceiptStatus, error) {
	receiptID = strings.TrimSpace(receiptID)
	if receiptID == "" {
		return ReceiptStatus{}, ErrReceiptNotFound
	}
	var status ReceiptStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/verifications/"+receiptID, nil, &status); err != nil {
		return ReceiptStatus{}, err
	}
	if status.ID == "" {
		status.ID = receiptID
	}
	return status, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrReceiptNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(respBytes, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if env.StatusCode != 0 && env.StatusCode != 200 {
		return fmt.Errorf("%w: %s", ErrVerificationFail, env.Message)
	}
	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
