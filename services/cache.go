package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// Константы для TTL кэша
const (
	CacheTTLShort  = 30 * time.Second // Для статистики дашборда
	CacheTTLMedium = 15 * time.Minute
	CacheTTLLong   = 1 * time.Hour
)

const cacheNamespace = "fieldops:cache:"

// ErrCacheMiss ключ не найден в кэше
var ErrCacheMiss = errors.New("ключ не найден")

// CacheService предоставляет методы для кэширования. Использует Redis,
// а без него хранит значения в памяти процесса
type CacheService struct {
	redis  *redis.Client
	local  *gocache.Cache
	ttl    time.Duration
	logger *log.Logger
}

// NewCacheService создает новый экземпляр CacheService. redisClient может быть nil
func NewCacheService(redisClient *redis.Client, ttl time.Duration, logger *log.Logger) *CacheService {
	if ttl <= 0 {
		ttl = CacheTTLShort
	}
	if logger == nil {
		logger = log.Default()
	}
	cs := &CacheService{redis: redisClient, ttl: ttl, logger: logger}
	if redisClient == nil {
		cs.local = gocache.New(ttl, 2*ttl)
	}
	return cs
}

// Get получает значение из кэша
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	if cs.redis == nil {
		if value, ok := cs.local.Get(cacheNamespace + key); ok {
			return value.(string), nil
		}
		return "", ErrCacheMiss
	}

	val, err := cs.redis.Get(ctx, cacheNamespace+key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	return val, err
}

// Set сохраняет значение в кэш
func (cs *CacheService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cs.ttl
	}
	if cs.redis == nil {
		cs.local.Set(cacheNamespace+key, value, ttl)
		return nil
	}
	return cs.redis.Set(ctx, cacheNamespace+key, value, ttl).Err()
}

// Del удаляет значение из кэша
func (cs *CacheService) Del(ctx context.Context, key string) error {
	if cs.redis == nil {
		cs.local.Delete(cacheNamespace + key)
		return nil
	}
	return cs.redis.Del(ctx, cacheNamespace+key).Err()
}

// InvalidatePrefix удаляет все ключи с префиксом
func (cs *CacheService) InvalidatePrefix(ctx context.Context, prefix string) error {
	full := cacheNamespace + prefix
	if cs.redis == nil {
		for key := range cs.local.Items() {
			if strings.HasPrefix(key, full) {
				cs.local.Delete(key)
			}
		}
		return nil
	}

	iter := cs.redis.Scan(ctx, 0, full+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("ошибка обхода ключей кэша: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return cs.redis.Del(ctx, keys...).Err()
}

// GetJSON читает и разбирает JSON-значение. Любая ошибка считается промахом
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, err := cs.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			cs.logger.Printf("⚠️ Ошибка чтения кэша %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		cs.logger.Printf("⚠️ Ошибка десериализации кэша %s: %v", key, err)
		return false
	}
	return true
}

// SetJSON сохраняет значение как JSON. Ошибки только логируются
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		cs.logger.Printf("⚠️ Ошибка сериализации кэша %s: %v", key, err)
		return
	}
	if err := cs.Set(ctx, key, string(payload), cs.ttl); err != nil {
		cs.logger.Printf("⚠️ Ошибка записи кэша %s: %v", key, err)
	}
}
