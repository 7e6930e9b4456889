package custody

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stellar/go/keypair"
	"golang.org/x/crypto/hkdf"
)

const derivationSalt = "settlepay/custody/v1"

var (
	ErrRootSecretMissing      = errors.New("custody root secret missing")
	ErrDerivationInput        = errors.New("custody derivation input invalid")
	ErrCustodyAddressMismatch = errors.New("custody address mismatch")
)

// Deriver 托管密钥派生器
// 同一根密钥下 (merchantID, paymentID) 永远得到同一对密钥，不落库。
type Deriver struct {
	rootSecret []byte
}

// NewDeriver 创建派生器
func NewDeriver(rootSecret string) (*Deriver, error) {
	secret := strings.TrimSpace(rootSecret)
	if secret == "" {
		return nil, ErrRootSecretMissing
	}
	return &Deriver{rootSecret: []byte(secret)}, nil
}

// Derive 派生托管密钥对
func (d *Deriver) Derive(merchantID, paymentID string) (*keypair.Full, error) {
	if d == nil || len(d.rootSecret) == 0 {
		return nil, ErrRootSecretMissing
	}
	merchantID = strings.TrimSpace(merchantID)
	paymentID = strings.TrimSpace(paymentID)
	if merchantID == "" || paymentID == "" {
		return nil, fmt.Errorf("%w: merchant_id and payment_id are required", ErrDerivationInput)
	}

	reader := hkdf.New(sha256.New, d.rootSecret, []byte(derivationSalt), []byte(merchantID+":"+paymentID))
	var seed [32]byte
	if _, err := io.ReadFull(reader, seed[:]); err != nil {
		return nil, fmt.Errorf("read derived seed failed: %w", err)
	}
	kp, err := keypair.FromRawSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("build keypair failed: %w", err)
	}
	return kp, nil
}

// Address 派生托管地址（建单分配地址时使用）
func (d *Deriver) Address(merchantID, paymentID string) (string, error) {
	kp, err := d.Derive(merchantID, paymentID)
	if err != nil {
		return "", err
	}
	return kp.Address(), nil
}

// DeriveVerified 重新派生并校验与已存储地址一致，不一致时绝不返回私钥
func (d *Deriver) DeriveVerified(merchantID, paymentID, storedAddress string) (*keypair.Full, error) {
	kp, err := d.Derive(merchantID, paymentID)
	if err != nil {
		return nil, err
	}
	if kp.Address() != strings.TrimSpace(storedAddress) {
		return nil, fmt.Errorf("%w: derived %s, stored %s", ErrCustodyAddressMismatch, kp.Address(), storedAddress)
	}
	return kp, nil
}

// Verify 校验已存储的托管地址是否由当前根密钥派生
func (d *Deriver) Verify(merchantID, paymentID, storedAddress string) error {
	_, err := d.DeriveVerified(merchantID, paymentID, storedAddress)
	return err
}
