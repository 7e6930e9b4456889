package service

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrObserverBusy          = errors.New("observer tick already running")
	ErrSweepInProgress       = errors.New("sweep already in progress")
	ErrSweepLimitInvalid     = errors.New("sweep limit invalid")
	ErrVaultNotConfigured    = errors.New("vault address not configured")
	ErrVerifierDisabled      = errors.New("verifier disabled")
	ErrVerificationRejected  = errors.New("verification rejected")
	ErrVerificationPending   = errors.New("verification still pending")
	ErrVerificationExhausted = errors.New("verification attempts exhausted")
	ErrPaymentNotVerifiable  = errors.New("payment not verifiable")
	ErrInvalidToken          = errors.New("invalid token")
)
