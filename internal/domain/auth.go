package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer — issuer операторских токенов sentinel. Сервис выдачи пишет
// его в claims, валидатор принимает только токены с этим issuer.
const TokenIssuer = "spaceai-sentinel"

type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "sentinel.read": true, "sentinel.respond": true
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

// User — оператор SOC-консоли (не путать с агентом)
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"` // Никогда не отправляем на фронт
	Scopes       map[string]bool `json:"scopes"`
	CreatedAt    time.Time       `json:"created_at"`
}
