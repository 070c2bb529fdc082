package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource отдает bearer-токен пользователя для запросов к бэкенду.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Ошибки работы с токеном
var (
	ErrTokenMissing = errors.New("auth token is not set")
	ErrTokenExpired = errors.New("auth token is expired")
)

// StaticTokenSource хранит токен, выданный внешним identity-провайдером,
// и перед каждым использованием проверяет его срок действия по claims.
// Подпись не проверяется: секрет принадлежит бэкенду, клиенту он не известен.
type StaticTokenSource struct {
	mu    sync.RWMutex
	token string
}

// NewStaticTokenSource создает источник с начальным токеном (может быть пустым).
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// SetToken заменяет текущий токен (например, после повторного логина).
func (t *StaticTokenSource) SetToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

// Token возвращает токен, если он установлен и не истек.
func (t *StaticTokenSource) Token(_ context.Context) (string, error) {
	t.mu.RLock()
	token := t.token
	t.mu.RUnlock()

	if token == "" {
		return "", ErrTokenMissing
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Непарсируемый токен отдаем как есть: решение за бэкендом
		return token, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, nil
	}
	if time.Now().After(exp.Time) {
		return "", fmt.Errorf("%w: expired at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	return token, nil
}
