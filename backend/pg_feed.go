package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"
)

// DefaultNotifyChannel канал NOTIFY, в который пишут триггеры изменений
const DefaultNotifyChannel = "fieldops_changes"

// PGFeed слушает NOTIFY из PostgreSQL и раздает события подписчикам
type PGFeed struct {
	listener *pq.Listener
	broker   *Broker
	logger   *log.Logger
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewPGFeed подключается к PostgreSQL и начинает слушать канал
func NewPGFeed(dsn, channel string, logger *log.Logger) (*PGFeed, error) {
	if logger == nil {
		logger = log.Default()
	}
	if channel == "" {
		channel = DefaultNotifyChannel
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			logger.Printf("⚠️ Ошибка слушателя PostgreSQL: %v", err)
		}
		if event == pq.ListenerEventReconnected {
			logger.Println("🔄 Слушатель PostgreSQL переподключен")
		}
	})

	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("не удалось подписаться на канал %s: %w", channel, err)
	}

	feed := &PGFeed{
		listener: listener,
		broker:   NewBroker(),
		logger:   logger,
		done:     make(chan struct{}),
	}

	feed.wg.Add(1)
	go feed.run()

	logger.Printf("✅ Слушаем уведомления PostgreSQL в канале %s", channel)
	return feed, nil
}

func (f *PGFeed) run() {
	defer f.wg.Done()

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-f.done:
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// nil приходит после переподключения: часть событий могла потеряться
			if n == nil {
				continue
			}
			event, err := decodeEvent([]byte(n.Extra))
			if err != nil {
				f.logger.Printf("⚠️ Некорректное уведомление: %v", err)
				continue
			}
			_ = f.broker.Publish(context.Background(), event)
		case <-ping.C:
			if err := f.listener.Ping(); err != nil {
				f.logger.Printf("⚠️ PostgreSQL не отвечает на ping: %v", err)
			}
		}
	}
}

// Subscribe открывает подписку на изменения коллекции
func (f *PGFeed) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	return f.broker.Subscribe(ctx, collection)
}

// Close останавливает слушателя и закрывает подписки
func (f *PGFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		f.wg.Wait()
		err = f.listener.Close()
		f.broker.Close()
	})
	return err
}

func decodeEvent(payload []byte) (ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ChangeEvent{}, err
	}
	if event.Collection == "" {
		return ChangeEvent{}, fmt.Errorf("в уведомлении нет коллекции: %s", string(payload))
	}
	switch event.Kind {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
	default:
		return ChangeEvent{}, fmt.Errorf("неизвестный вид изменения %q", event.Kind)
	}
	return event, nil
}
