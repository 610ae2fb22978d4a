package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

var (
	// ErrInvalidToken — токен не прошел проверку подписи или формата
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken — срок действия токена истек
	ErrExpiredToken = errors.New("token has expired")
)

// JWTCustomClaims содержит пользовательские поля для токена
type JWTCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService предоставляет методы для работы с JWT
type JWTService struct {
	secretKey     string
	expirationHrs int

	// Черный список инвалидированных пользователей (in-memory)
	invalidatedUsers map[uint]time.Time
	mu               sync.RWMutex
}

// NewJWTService создает новый сервис JWT
func NewJWTService(secretKey string, expirationHrs int) (*JWTService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("jwt secret key is required")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24
	}
	return &JWTService{
		secretKey:        secretKey,
		expirationHrs:    expirationHrs,
		invalidatedUsers: make(map[uint]time.Time),
	}, nil
}

// GenerateToken создает подписанный токен для пользователя
func (s *JWTService) GenerateToken(user *entity.User) (string, error) {
	now := time.Now()
	claims := &JWTCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expirationHrs) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

// ParseToken проверяет подпись и срок действия токена и возвращает claims
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Токены, выданные до инвалидации пользователя, не принимаются
	s.mu.RLock()
	invalidatedAt, invalidated := s.invalidatedUsers[claims.UserID]
	s.mu.RUnlock()
	if invalidated && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(invalidatedAt) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// InvalidateUserTokens отзывает все ранее выданные токены пользователя
func (s *JWTService) InvalidateUserTokens(userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidatedUsers[userID] = time.Now()
}
