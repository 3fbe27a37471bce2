package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fieldops_backend/access"
	"fieldops_backend/config"
	"fieldops_backend/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Ключи контекста gin
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextScope  = "scope"
	ContextToken  = "token"
)

// Claims данные JWT токена
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UserLoader загружает пользователя по идентификатору
type UserLoader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware проверяет аутентификацию пользователя
type AuthMiddleware struct {
	secret []byte
	issuer string
	ttl    time.Duration
	users  UserLoader
}

// NewAuthMiddleware создает новый экземпляр AuthMiddleware
func NewAuthMiddleware(cfg config.JWTConfig, users UserLoader) *AuthMiddleware {
	ttl := cfg.ExpiresIn
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthMiddleware{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		users:  users,
	}
}

// IssueToken выпускает токен для пользователя
func (am *AuthMiddleware) IssueToken(user *models.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(am.ttl)
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    am.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(am.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ParseToken проверяет подпись и срок действия токена
func (am *AuthMiddleware) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if am.issuer != "" {
		opts = append(opts, jwt.WithIssuer(am.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// RequireAuth middleware для проверки аутентификации
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		claims, err := am.ParseToken(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// Пользователь перечитывается, чтобы роль и регионы были актуальными
		user, err := am.users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil || user == nil {
			abortUnauthorized(c, "User not found")
			return
		}

		// Сохраняем информацию о пользователе в контексте
		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextScope, access.ForUser(user))
		c.Set(ContextToken, token)

		c.Next()
	}
}

// RequireAdmin пропускает только администраторов. Используется после RequireAuth
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetCurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{
				"status": "error",
				"error":  "Admin role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCurrentUser возвращает текущего пользователя из контекста
func GetCurrentUser(c *gin.Context) *models.User {
	if user, exists := c.Get(ContextUser); exists {
		if u, ok := user.(*models.User); ok {
			return u
		}
	}
	return nil
}

// GetScope возвращает область доступа текущего пользователя.
// Без пользователя область пустая
func GetScope(c *gin.Context) access.Scope {
	if scope, exists := c.Get(ContextScope); exists {
		if s, ok := scope.(access.Scope); ok {
			return s
		}
	}
	return access.ForUser(nil)
}

// GetCurrentToken возвращает текущий токен из контекста
func GetCurrentToken(c *gin.Context) string {
	return c.GetString(ContextToken)
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// EventSource в браузере не умеет передавать заголовки
		return c.Query("access_token")
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return strings.TrimSpace(authHeader)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"status": "error",
		"error":  message,
	})
	c.Abort()
}
