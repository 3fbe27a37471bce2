package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"fieldops_backend/api"
	"fieldops_backend/backend"
	"fieldops_backend/config"
	"fieldops_backend/dashboard"
	"fieldops_backend/database"
	"fieldops_backend/middleware"
	"fieldops_backend/observability"
	"fieldops_backend/services"

	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const devJWTSecret = "fieldops-development-secret-change-me"

// application собранные зависимости сервиса
type application struct {
	cfg     *config.Config
	db      *gorm.DB
	redis   *redis.Client
	metrics *observability.Metrics

	backend    *backend.GormBackend
	aggregator *dashboard.Aggregator
	cache      *services.CacheService
	messenger  services.Messenger
	digest     *services.DigestScheduler
	handler    *api.Handler

	closers []func()
}

// newApplication подключает и мигрирует базу, подключает Redis и канал изменений, собирает сервисы
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	cfg.LogConfig()
	a := &application{cfg: cfg}

	if err := database.CreateDatabaseIfNotExists(cfg); err != nil {
		return nil, err
	}
	db, err := database.ConnectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() { closeDB(db) })
	if err := migrate(db, cfg); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		client, err := database.InitRedis(ctx, cfg)
		if err != nil {
			if cfg.Sync.Feed == config.FeedRedis {
				a.Close()
				return nil, err
			}
			log.Printf("⚠️ Redis недоступен, кэш и лимиты запросов работают в памяти: %v", err)
		} else {
			a.redis = client
			a.closers = append(a.closers, func() { _ = client.Close() })
		}
	}

	feed, publisher, err := a.openFeed(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("не удалось зарегистрировать метрики: %w", err)
	}
	a.metrics = metrics

	a.backend = backend.NewGormBackend(db, backend.GormOptions{
		Collections: database.CollectionSpecs(),
		Feed:        feed,
		Publisher:   publisher,
		Location:    cfg.Location(),
	})
	a.cache = services.NewCacheService(a.redis, cfg.Sync.StatsCacheTTL, nil)
	a.aggregator = dashboard.NewAggregator(a.backend,
		dashboard.WithLocation(cfg.Location()),
		dashboard.WithMetrics(metrics),
		dashboard.WithCache(a.cache),
	)

	a.messenger = services.LogMessenger{}
	if cfg.Telegram.BotToken != "" {
		tg, err := services.NewTelegramClient(services.TelegramOptions{
			BotToken:    cfg.Telegram.BotToken,
			ChatID:      cfg.Telegram.ChatID,
			APIEndpoint: cfg.Telegram.APIEndpoint,
		})
		if err != nil {
			log.Printf("⚠️ Telegram недоступен, уведомления пишутся в лог: %v", err)
		} else {
			a.messenger = tg
		}
	}

	a.digest = services.NewDigestScheduler(a.aggregator, a.messenger, services.DigestOptions{
		Schedule: cfg.Digest.Schedule,
		Location: cfg.Location(),
		Metrics:  metrics,
	})

	if cfg.JWT.Secret == "" {
		log.Println("⚠️ JWT_SECRET не задан, используется секрет для разработки")
		cfg.JWT.Secret = devJWTSecret
	}
	blobs, err := backend.NewLocalBlobStore(cfg.Storage.UploadDir, cfg.Storage.PublicURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	users := services.NewUserService(db)

	a.handler = api.NewHandler(api.Deps{
		Backend:       a.backend,
		Aggregator:    a.aggregator,
		Reports:       services.NewReportService(db, publisher, nil),
		Exports:       services.NewExportService(cfg.Location(), nil),
		Users:         users,
		Blobs:         blobs,
		Auth:          middleware.NewAuthMiddleware(cfg.JWT, users),
		Metrics:       metrics,
		Cache:         a.cache,
		Location:      cfg.Location(),
		MaxUploadSize: cfg.Security.MaxUploadSize,
	})
	return a, nil
}

// openFeed выбирает источник уведомлений об изменениях.
// Publisher возвращается nil, когда события порождает сама база
func (a *application) openFeed(ctx context.Context) (backend.ChangeFeed, backend.Publisher, error) {
	switch a.cfg.Sync.Feed {
	case config.FeedPostgres:
		feed, err := backend.NewPGFeed(a.cfg.GetDatabaseDSN(), a.cfg.Sync.NotifyChannel, nil)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = feed.Close() })
		return feed, nil, nil
	case config.FeedRedis:
		feed, err := backend.NewRedisFeed(ctx, a.redis, a.cfg.Sync.RedisPrefix, nil)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = feed.Close() })
		return feed, feed, nil
	default:
		broker := backend.NewBroker()
		a.closers = append(a.closers, broker.Close)
		return broker, broker, nil
	}
}

// Close освобождает ресурсы в порядке, обратном созданию
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// serve запускает HTTP сервер и фоновые задачи до отмены ctx
func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher := services.NewIncidentWatcher(a.backend, a.messenger, services.IncidentWatcherOptions{
		Location: cfg.Location(),
		Metrics:  a.metrics,
	})
	if err := watcher.Start(ctx); err != nil {
		log.Printf("⚠️ Не удалось запустить наблюдение за инцидентами: %v", err)
	} else {
		defer watcher.Close()
	}

	if cfg.Digest.Enabled {
		if err := a.digest.Start(); err != nil {
			return err
		}
		defer a.digest.Stop()
		log.Printf("⏰ Следующая сводка: %s", a.digest.NextRun().Format(time.RFC3339))
	}

	router := api.NewRouter(a.handler, api.RouterOptions{
		CORS:      cfg.CORS,
		Security:  cfg.Security,
		Redis:     a.redis,
		UploadDir: cfg.Storage.UploadDir,
	})

	srv := newHTTPServer(cfg.App.Host+":"+cfg.App.Port, router)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Сервер запущен на %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("🛑 Останавливаем сервер...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Security.RequestTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	log.Println("✅ Сервер остановлен")
	return nil
}

// newHTTPServer создает сервер, у которого Shutdown отменяет контексты запросов,
// в том числе открытых потоков SSE
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}

// migrate создает таблицы, индексы и, для канала postgres, триггеры уведомлений
func migrate(db *gorm.DB, cfg *config.Config) error {
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("ошибка автомиграции: %w", err)
	}
	if cfg.Database.Type == "postgres" {
		if err := database.CreatePerformanceIndexes(db); err != nil {
			return fmt.Errorf("ошибка создания индексов: %w", err)
		}
		if cfg.Sync.Feed == config.FeedPostgres {
			if err := database.InstallChangeTriggers(db, cfg.Sync.NotifyChannel); err != nil {
				return err
			}
		}
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
