package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/config"
	infrds "coinflip-server/internal/infra/redis"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const defaultAccessTTL = 24 * time.Hour

// JWTClaims 玩家身份；Subject 即托管账户ID
type JWTClaims struct {
	AccountID string `json:"account_id"`
	TokenType string `json:"token_type"` // access
	jwt.RegisteredClaims
}

// GenerateAccessToken 为账户签发访问令牌
func GenerateAccessToken(accountID string) (string, time.Time, error) {
	cfg := config.Get()
	if cfg == nil {
		return "", time.Time{}, ErrConfigNotLoaded
	}

	now := time.Now()
	ttl := time.Duration(cfg.Auth.JWT.AccessTokenTTL) * time.Second
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	expiresAt := now.Add(ttl)

	claims := JWTClaims{
		AccountID: accountID,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    cfg.Auth.JWT.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Auth.JWT.Secret))
	return signed, expiresAt, err
}

// BearerToken 从 Authorization 头中提取 Bearer Token
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidTokenFormat
	}
	return parts[1], nil
}

// VerifyJWTToken 验证 Token 签名、有效期与黑名单
func VerifyJWTToken(ctx context.Context, tokenString string) (*JWTClaims, error) {
	cfg := config.Get()
	if cfg == nil {
		return nil, ErrConfigNotLoaded
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return []byte(cfg.Auth.JWT.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		logger.Warn("jwt parse failed", zap.Error(err))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.AccountID == "" {
		return nil, ErrInvalidToken
	}

	if IsTokenBlacklisted(ctx, tokenString) {
		logger.Warn("token is blacklisted", zap.String("account_id", claims.AccountID))
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Redis 未配置时退化为进程内黑名单：token -> 过期时间
var localBlacklist sync.Map

// RevokeToken 撤销 Token（加入黑名单直到过期）
func RevokeToken(ctx context.Context, tokenString string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	rdb := infrds.Client()
	if rdb == nil {
		localBlacklist.Store(tokenString, expiresAt)
		return nil
	}
	if err := rdb.SetEx(ctx, infrds.TokenBlacklistKey(tokenString), "1", ttl).Err(); err != nil {
		logger.Warn("failed to add token to blacklist", zap.Error(err))
		return err
	}
	return nil
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
func IsTokenBlacklisted(ctx context.Context, tokenString string) bool {
	rdb := infrds.Client()
	if rdb == nil {
		v, ok := localBlacklist.Load(tokenString)
		if !ok {
			return false
		}
		if time.Now().After(v.(time.Time)) {
			localBlacklist.Delete(tokenString)
			return false
		}
		return true
	}
	exists, err := rdb.Exists(ctx, infrds.TokenBlacklistKey(tokenString)).Result()
	if err != nil {
		logger.Warn("failed to check token blacklist", zap.Error(err))
		return false // 降级：Redis 错误时不阻断
	}
	return exists > 0
}
