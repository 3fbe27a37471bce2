package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"fieldops_backend/config"

	"github.com/go-redis/redis/v8"
)

var Redis *redis.Client

// InitRedis инициализирует подключение к Redis
func InitRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.MaxConns,
		MinIdleConns: 2,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  300 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	Redis = client
	log.Println("✅ Успешно подключено к Redis")
	return client, nil
}

// GetRedis возвращает экземпляр Redis клиента
func GetRedis() *redis.Client {
	return Redis
}

// GenerateCacheKey генерирует ключ кэша из префикса и частей
func GenerateCacheKey(prefix string, parts ...string) string {
	return "fieldops:" + prefix + ":" + strings.Join(parts, ":")
}

// RateLimitCheck увеличивает счетчик действия в окне и возвращает его значение.
// allowed == false, если счетчик превысил limit
func RateLimitCheck(ctx context.Context, client *redis.Client, subject, action string, limit int64, window time.Duration) (count int64, allowed bool, err error) {
	key := GenerateCacheKey("ratelimit", action, subject)

	count, err = client.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	if count == 1 {
		// TTL только для первого запроса в окне
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return count, false, err
		}
	}

	return count, count <= limit, nil
}
