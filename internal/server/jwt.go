package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// 默认有效期，覆盖一局比赛
	DefaultSessionTTL = 5 * time.Minute

	tokenIssuer = "arenanet-server"
)

var ErrInvalidToken = errors.New("会话令牌无效")

// Claims 会话令牌携带的内容
type Claims struct {
	PlayerID int32  `json:"player_id"`
	ArenaID  string `json:"arena_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer 签发与校验重连令牌
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate 生成会话 Token
func (t *TokenIssuer) Generate(playerID int32, arenaID string) (string, error) {
	now := t.now()
	claims := Claims{
		PlayerID: playerID,
		ArenaID:  arenaID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprintf("player-%d", playerID),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify 验证并解析 Token，返回玩家编号和竞技场
func (t *TokenIssuer) Verify(tokenString string) (int32, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))

	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.PlayerID, claims.ArenaID, nil
	}

	return 0, "", ErrInvalidToken
}
