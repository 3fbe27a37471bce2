package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"fieldops_backend/database"

	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Name         string                    // Имя действия в ключе счетчика
	Requests     int                       // Количество запросов
	Window       time.Duration             // Временное окно
	KeyGenerator func(*gin.Context) string // Генератор ключей

	// Redis общий счетчик для нескольких экземпляров. nil - счетчик в памяти процесса
	Redis *redis.Client
}

// DefaultKeyGenerator генерирует ключ на основе IP адреса
func DefaultKeyGenerator(c *gin.Context) string {
	return c.ClientIP()
}

// UserKeyGenerator генерирует ключ на основе пользователя
func UserKeyGenerator(c *gin.Context) string {
	userID := c.GetString(ContextUserID)
	if userID == "" {
		return c.ClientIP()
	}
	return "user:" + userID
}

// RateLimiter считает запросы в фиксированном окне
type RateLimiter struct {
	config RateLimitConfig
	local  *gocache.Cache
}

// NewRateLimiter создает новый экземпляр RateLimiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyGenerator == nil {
		config.KeyGenerator = DefaultKeyGenerator
	}
	if config.Name == "" {
		config.Name = "api"
	}
	rl := &RateLimiter{config: config}
	if config.Redis == nil {
		rl.local = gocache.New(config.Window, 2*config.Window)
	}
	return rl
}

// Allow увеличивает счетчик ключа и возвращает его значение
func (rl *RateLimiter) Allow(ctx context.Context, key string) (int, bool, error) {
	if rl.config.Redis != nil {
		count, allowed, err := database.RateLimitCheck(ctx, rl.config.Redis, key, rl.config.Name,
			int64(rl.config.Requests), rl.config.Window)
		return int(count), allowed, err
	}

	fullKey := rl.config.Name + ":" + key
	// Add не перезаписывает существующий счетчик и его срок
	_ = rl.local.Add(fullKey, 0, rl.config.Window)
	count, err := rl.local.IncrementInt(fullKey, 1)
	if err != nil {
		return 0, false, err
	}
	return count, count <= rl.config.Requests, nil
}

// Middleware создает middleware для ограничения частоты запросов
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		count, allowed, err := rl.Allow(c.Request.Context(), rl.config.KeyGenerator(c))
		if err != nil {
			// В случае ошибки Redis пропускаем запрос
			log.Printf("⚠️ Rate limit недоступен: %v", err)
			c.Next()
			return
		}

		remaining := rl.config.Requests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rl.config.Window).Unix(), 10))

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"error": fmt.Sprintf("Too many requests. Limit: %d requests per %v",
					rl.config.Requests, rl.config.Window),
				"retry_after": rl.config.Window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Предустановленные конфигурации rate limiting

// AuthRateLimit ограничение для авторизации
func AuthRateLimit(client *redis.Client) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Name:         "auth",
		Requests:     5,
		Window:       time.Minute,
		KeyGenerator: DefaultKeyGenerator,
		Redis:        client,
	}).Middleware()
}

// APIRateLimit ограничение для API по пользователю
func APIRateLimit(client *redis.Client, requests int, window time.Duration) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Name:         "api",
		Requests:     requests,
		Window:       window,
		KeyGenerator: UserKeyGenerator,
		Redis:        client,
	}).Middleware()
}
