package services

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"fieldops_backend/backend"
	"fieldops_backend/models"
	"fieldops_backend/observability"
	"fieldops_backend/realtime"
)

// IncidentWatcherOptions настройки IncidentWatcher
type IncidentWatcherOptions struct {
	Location *time.Location
	Logger   *log.Logger
	Metrics  *observability.Metrics
}

// IncidentWatcher держит зеркало коллекции инцидентов и оповещает о новых.
// Инциденты, найденные при первой успешной загрузке, считаются известными
type IncidentWatcher struct {
	backend   backend.Backend
	messenger Messenger
	opts      IncidentWatcherOptions
	logger    *log.Logger

	collection *realtime.Collection[models.Incident]
	ctx        context.Context

	mu     sync.Mutex
	seen   map[string]bool
	primed bool
}

// NewIncidentWatcher создает новый экземпляр IncidentWatcher
func NewIncidentWatcher(b backend.Backend, messenger Messenger, opts IncidentWatcherOptions) *IncidentWatcher {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &IncidentWatcher{
		backend:   b,
		messenger: messenger,
		opts:      opts,
		logger:    logger,
		seen:      make(map[string]bool),
	}
}

// Start подписывается на инциденты. Оповещения отправляются до отмены ctx или Close
func (w *IncidentWatcher) Start(ctx context.Context) error {
	w.ctx = ctx
	w.collection = realtime.New(w.backend, models.CollectionIncidents, realtime.Options[models.Incident]{
		OrderBy:   "date",
		Events:    []backend.ChangeKind{backend.ChangeInsert},
		OnRefresh: w.handleRefresh,
		Logger:    w.logger,
		Metrics:   w.opts.Metrics,
	})
	if err := w.collection.Start(ctx); err != nil {
		return err
	}
	w.logger.Println("🚨 Наблюдение за инцидентами запущено")
	return nil
}

// Close останавливает наблюдение
func (w *IncidentWatcher) Close() error {
	if w.collection == nil {
		return nil
	}
	return w.collection.Close()
}

func (w *IncidentWatcher) handleRefresh(incidents []models.Incident) {
	w.mu.Lock()
	var fresh []models.Incident
	for _, incident := range incidents {
		if w.seen[incident.ID] {
			continue
		}
		w.seen[incident.ID] = true
		if w.primed {
			fresh = append(fresh, incident)
		}
	}
	w.primed = true
	w.mu.Unlock()

	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].Date.Before(fresh[j].Date) })
	for _, incident := range fresh {
		w.notify(incident)
	}
}

func (w *IncidentWatcher) notify(incident models.Incident) {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.messenger.Send(ctx, FormatIncidentAlert(incident, w.opts.Location)); err != nil {
		w.opts.Metrics.RecordNotification("incident", "error")
		w.logger.Printf("❌ Не удалось отправить оповещение об инциденте %s: %v", incident.ID, err)
		return
	}
	w.opts.Metrics.RecordNotification("incident", "success")
}
