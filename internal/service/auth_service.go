package service

import (
	"strings"
	"time"

	"github.com/settlepay/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService 运维端令牌服务
type AuthService struct {
	cfg *config.JWTConfig
}

// NewAuthService 创建令牌服务
func NewAuthService(cfg *config.JWTConfig) *AuthService {
	return &AuthService{cfg: cfg}
}

// Configured 是否已配置签名密钥
func (s *AuthService) Configured() bool {
	return s != nil && s.cfg != nil && strings.TrimSpace(s.cfg.SecretKey) != ""
}

// JWTClaims JWT 声明
type JWTClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// GenerateJWT 为运维人员签发令牌
func (s *AuthService) GenerateJWT(operator string) (string, time.Time, error) {
	hours := s.cfg.ExpireHours
	if hours <= 0 {
		hours = 24
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(hours) * time.Hour)

	claims := JWTClaims{
		Operator: strings.TrimSpace(operator),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(operator),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseJWT 解析 JWT Token
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid && claims.Operator != "" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
