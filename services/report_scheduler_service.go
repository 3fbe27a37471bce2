package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"fieldops_backend/dashboard"
	"fieldops_backend/observability"

	"github.com/robfig/cron/v3"
)

// StatsSource считает статистику дашборда
type StatsSource interface {
	Compute(ctx context.Context, scope string, filter dashboard.Filter) (dashboard.Stats, error)
}

// DigestOptions настройки DigestScheduler
type DigestOptions struct {
	// Schedule cron-выражение из пяти полей, по умолчанию "0 8 * * *"
	Schedule string
	Location *time.Location
	Now      func() time.Time
	Logger   *log.Logger
	Metrics  *observability.Metrics
}

// DigestScheduler отправляет ежедневную сводку за вчерашний день по расписанию
type DigestScheduler struct {
	stats     StatsSource
	messenger Messenger
	opts      DigestOptions
	logger    *log.Logger
	cron      *cron.Cron
	entry     cron.EntryID
}

// NewDigestScheduler создает новый экземпляр DigestScheduler
func NewDigestScheduler(stats StatsSource, messenger Messenger, opts DigestOptions) *DigestScheduler {
	if opts.Schedule == "" {
		opts.Schedule = "0 8 * * *"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &DigestScheduler{
		stats:     stats,
		messenger: messenger,
		opts:      opts,
		logger:    logger,
		cron:      cron.New(cron.WithLocation(opts.Location)),
	}
}

// Start запускает планировщик сводок
func (ds *DigestScheduler) Start() error {
	id, err := ds.cron.AddFunc(ds.opts.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := ds.SendDigest(ctx); err != nil {
			ds.logger.Printf("❌ Ошибка отправки сводки: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add digest job: %w", err)
	}
	ds.entry = id

	ds.cron.Start()
	ds.logger.Printf("⏰ Планировщик сводок запущен (%s), следующий запуск: %s",
		ds.opts.Schedule, ds.NextRun().Format(time.RFC3339))
	return nil
}

// Stop останавливает планировщик и ждет завершения текущей задачи
func (ds *DigestScheduler) Stop() {
	<-ds.cron.Stop().Done()
	ds.logger.Println("⏰ Планировщик сводок остановлен")
}

// NextRun возвращает время следующей отправки или нулевое время до Start
func (ds *DigestScheduler) NextRun() time.Time {
	if ds.entry == 0 {
		return time.Time{}
	}
	return ds.cron.Entry(ds.entry).Next
}

// SendDigest считает статистику за вчерашний день и отправляет сводку
func (ds *DigestScheduler) SendDigest(ctx context.Context) error {
	yesterday := ds.opts.Now().In(ds.opts.Location).AddDate(0, 0, -1)
	filter := dashboard.Filter{
		TimeFrame: dashboard.TimeFrameCustom,
		DateRange: &dashboard.DateRange{From: yesterday, To: yesterday},
	}

	stats, err := ds.stats.Compute(ctx, dashboard.ScopeAdmin, filter)
	if err != nil {
		ds.opts.Metrics.RecordNotification("digest", "error")
		return fmt.Errorf("ошибка расчета сводки: %w", err)
	}

	if err := ds.messenger.Send(ctx, FormatDigest(stats, yesterday)); err != nil {
		ds.opts.Metrics.RecordNotification("digest", "error")
		return err
	}
	ds.opts.Metrics.RecordNotification("digest", "success")
	ds.logger.Printf("📊 Сводка за %s отправлена", yesterday.Format("2006-01-02"))
	return nil
}
