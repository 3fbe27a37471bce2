package backend

import (
	"context"
	"sync"
)

// DefaultBufferSize размер буфера событий одной подписки
const DefaultBufferSize = 64

// Broker раздает уведомления об изменениях подписчикам внутри процесса.
//
// Доставка не блокирует публикатора: если буфер подписчика заполнен, событие
// отбрасывается. Подписчик с непрочитанными событиями все равно перечитает
// коллекцию целиком, поэтому потерянное событие ничего не меняет.
type Broker struct {
	mu         sync.Mutex
	subs       map[string]map[*brokerSubscription]struct{}
	bufferSize int
	closed     bool
}

// NewBroker создает новый брокер
func NewBroker() *Broker {
	return &Broker{
		subs:       make(map[string]map[*brokerSubscription]struct{}),
		bufferSize: DefaultBufferSize,
	}
}

// Subscribe открывает подписку на коллекцию. Подписка закрывается вызовом Close
// или при отмене ctx
func (b *Broker) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &brokerSubscription{
		broker:     b,
		collection: collection,
		ch:         make(chan ChangeEvent, b.bufferSize),
	}
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[*brokerSubscription]struct{})
	}
	b.subs[collection][sub] = struct{}{}

	sub.mu.Lock()
	sub.stop = context.AfterFunc(ctx, func() {
		_ = sub.Close()
	})
	sub.mu.Unlock()

	return sub, nil
}

// Publish рассылает событие всем подписчикам коллекции
func (b *Broker) Publish(_ context.Context, event ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	for sub := range b.subs[event.Collection] {
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// SubscriberCount возвращает число открытых подписок на коллекцию
func (b *Broker) SubscriberCount(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[collection])
}

// Close закрывает все подписки
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*brokerSubscription
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
}

func (b *Broker) remove(sub *brokerSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[sub.collection]; ok {
		if _, exists := set[sub]; exists {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(b.subs, sub.collection)
		}
	}
}

type brokerSubscription struct {
	broker     *Broker
	collection string
	ch         chan ChangeEvent

	mu   sync.Mutex
	stop func() bool
	once sync.Once
}

func (s *brokerSubscription) Events() <-chan ChangeEvent {
	return s.ch
}

func (s *brokerSubscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.broker.remove(s)
	})
	return nil
}
