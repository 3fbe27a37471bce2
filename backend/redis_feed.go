package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix префикс каналов Redis с уведомлениями
const DefaultRedisPrefix = "fieldops:changes:"

// RedisFeed передает уведомления об изменениях между экземплярами сервиса через Redis Pub/Sub
type RedisFeed struct {
	client *redis.Client
	prefix string
	pubsub *redis.PubSub
	broker *Broker
	logger *log.Logger
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRedisFeed подписывается на каналы с префиксом и начинает раздавать события
func NewRedisFeed(ctx context.Context, client *redis.Client, prefix string, logger *log.Logger) (*RedisFeed, error) {
	if logger == nil {
		logger = log.Default()
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	pubsub := client.PSubscribe(ctx, prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("не удалось подписаться на %s*: %w", prefix, err)
	}

	feed := &RedisFeed{
		client: client,
		prefix: prefix,
		pubsub: pubsub,
		broker: NewBroker(),
		logger: logger,
	}

	feed.wg.Add(1)
	go feed.run()

	logger.Printf("✅ Слушаем уведомления Redis по шаблону %s*", prefix)
	return feed, nil
}

func (f *RedisFeed) run() {
	defer f.wg.Done()

	for msg := range f.pubsub.Channel() {
		event, err := decodeEvent([]byte(msg.Payload))
		if err != nil {
			f.logger.Printf("⚠️ Некорректное уведомление в %s: %v", msg.Channel, err)
			continue
		}
		if collection := strings.TrimPrefix(msg.Channel, f.prefix); collection != event.Collection {
			f.logger.Printf("⚠️ Коллекция %s не совпадает с каналом %s", event.Collection, msg.Channel)
			continue
		}
		_ = f.broker.Publish(context.Background(), event)
	}
}

// Publish отправляет событие в канал коллекции
func (f *RedisFeed) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}
	return f.client.Publish(ctx, f.prefix+event.Collection, payload).Err()
}

// Subscribe открывает подписку на изменения коллекции
func (f *RedisFeed) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	return f.broker.Subscribe(ctx, collection)
}

// Close отписывается от Redis и закрывает подписки
func (f *RedisFeed) Close() error {
	var err error
	f.once.Do(func() {
		err = f.pubsub.Close()
		f.wg.Wait()
		f.broker.Close()
	})
	return err
}
