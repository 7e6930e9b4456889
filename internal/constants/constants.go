package constants

// 支付状态常量
const (
	PaymentStatusPending       = "pending"
	PaymentStatusPartiallyPaid = "partially_paid"
	PaymentStatusConfirmed     = "confirmed"
	PaymentStatusOverpaid      = "overpaid"
	PaymentStatusExpired       = "expired"
	PaymentStatusFailed        = "failed"
	// PaymentStatusPaid 历史数据中的已支付状态，仅参与归集筛选
	PaymentStatusPaid = "paid"
)

// ActivePaymentStatuses 观察器仍需轮询的状态
var ActivePaymentStatuses = []string{
	PaymentStatusPending,
	PaymentStatusPartiallyPaid,
}

// SweepEligibleStatuses 可归集的状态
var SweepEligibleStatuses = []string{
	PaymentStatusConfirmed,
	PaymentStatusOverpaid,
	PaymentStatusPaid,
}

// 资产常量
const (
	AssetCodeNative = "XLM"
	// AmountScale 链上金额精度（7 位小数）
	AmountScale = 7
)

// 归集审计动作
const (
	SweepAuditActionTriggered = "sweep_triggered"
	SweepAuditActionCompleted = "sweep_completed"
	SweepAuditActionFailed    = "sweep_failed"
)

// 归集跳过原因
const (
	SweepSkipInvalidAmount   = "invalid_amount"
	SweepSkipKeyDerivation   = "key_derivation_failed"
	SweepSkipAddressMismatch = "custody_address_mismatch"
	SweepSkipSubmitFailed    = "ledger_submit_failed"
	SweepSkipMarkFailed      = "mark_swept_failed"
	SweepSkipAlreadySwept    = "already_swept"
	// 上次提交结果不明，交易仍可能入账
	SweepSkipPendingUnconfirmed = "pending_tx_unconfirmed"
	SweepSkipStatusCheckFailed  = "ledger_status_failed"
	SweepSkipPendingMarkFailed  = "mark_pending_failed"
)

// 队列与任务常量
const (
	QueueDefault            = "default"
	QueueCritical           = "critical"
	TaskPaymentVerify       = "settlement:payment_verify"
	TaskPaymentSettled      = "settlement:payment_settled"
	DefaultSettledChannel   = "settlement:events"
	SettlementEventSettled  = "payment.settled"
	LockKeyObserverTick     = "lock:observer_tick"
	LockKeySweepRun         = "lock:sweep_run"
	VerificationErrorMaxLen = 1000
)
