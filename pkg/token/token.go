package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims JWT 载荷：sub = 用户 ID
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Maker 签发 / 校验访问令牌
type Maker struct {
	secret []byte
	ttl    time.Duration
}

func NewMaker(secret string, ttl time.Duration) *Maker {
	return &Maker{secret: []byte(secret), ttl: ttl}
}

func (m *Maker) Issue(userID, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse 校验签名与过期时间，返回 (userID, username)。
func (m *Maker) Parse(tokenStr string) (string, string, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Username, nil
}
