package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"ahLedgerApp/config"
	"ahLedgerApp/internal/domain/repository"
	"ahLedgerApp/internal/domain/service"
	ws "ahLedgerApp/internal/handlers/websocket"
	"ahLedgerApp/internal/infrastructure/cache"
	"ahLedgerApp/internal/infrastructure/queue"
	"ahLedgerApp/internal/infrastructure/storage"
	"ahLedgerApp/internal/metrics"
)

// AppContext holds all app dependencies
type AppContext struct {
	Config        *config.Config
	Store         repository.EventStore
	Recorder      *metrics.Recorder
	Ledger        *service.LedgerService
	Broadcaster   *ws.WebSocketBroadcaster
	Processor     *UploadProcessor
	KafkaConsumer queue.UploadConsumer
	KafkaProducer queue.UploadProducer

	// ResetStore wipes the store on engines that support it; nil otherwise.
	ResetStore func() error
}

// NewApp initializes the app context with all dependencies. The storage
// engine and cache backend are selected here, once; nothing downstream
// branches on the configuration again.
func NewApp(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{Config: cfg}

	store, resetStore, err := newEventStore(cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.ResetStore = resetStore
	log.Printf("Event store initialized (engine=%s)", cfg.StorageEngine)

	queryCache, err := newQueryCache(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	log.Printf("Query cache initialized (backend=%s)", cfg.CacheBackend)

	app.Recorder = metrics.NewRecorder(metrics.OpStats, metrics.OpAwaiting)

	app.Ledger = service.NewLedgerService(store, queryCache, app.Recorder, service.Options{
		GraceMin:    cfg.GraceMin,
		CutRate:     cfg.AHCutRate,
		StatsTTL:    time.Duration(cfg.StatsTTLSeconds) * time.Second,
		AwaitingTTL: time.Duration(cfg.AwaitingTTLSeconds) * time.Second,
	})
	log.Println("Ledger service initialized")

	app.Broadcaster = ws.NewWebSocketBroadcaster()

	if cfg.KafkaEnabled {
		kafkaConfig := queue.KafkaConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
			BatchSize:     cfg.KafkaBatchSize,
			BatchTimeout:  cfg.KafkaBatchTimeout,
		}
		app.KafkaConsumer = queue.NewKafkaUploadConsumer(kafkaConfig)
		app.KafkaProducer = queue.NewKafkaUploadProducer(kafkaConfig)
		app.Processor = NewUploadProcessor(app.KafkaConsumer, app.Ledger, app.Broadcaster)
		log.Println("Kafka upload consumer and producer initialized")
	}

	return app, nil
}

func newEventStore(cfg *config.Config) (repository.EventStore, func() error, error) {
	switch cfg.StorageEngine {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		return repo, repo.Reset, nil
	case "clickhouse":
		repo, err := storage.NewClickHouseRepository(storage.ClickHouseConfig{
			Addr:     cfg.ClickhouseAddr,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
			Timeout:  cfg.ClickhouseTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initializing clickhouse store: %w", err)
		}
		return repo, nil, nil
	case "memory":
		repo := storage.NewMemoryRepository()
		return repo, func() error { repo.Reset(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage engine %q", cfg.StorageEngine)
	}
}

func newQueryCache(cfg *config.Config) (repository.QueryCache, error) {
	switch cfg.CacheBackend {
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		return cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup(ctx context.Context) {
	if a.KafkaConsumer != nil {
		log.Println("Closing Kafka consumer...")
		if err := a.KafkaConsumer.Close(); err != nil {
			log.Printf("Error closing Kafka consumer: %v", err)
		}
	}
	if a.KafkaProducer != nil {
		log.Println("Closing Kafka producer...")
		if err := a.KafkaProducer.Close(); err != nil {
			log.Printf("Error closing Kafka producer: %v", err)
		}
	}
	if a.Store != nil {
		log.Println("Closing event store...")
		if err := a.Store.Close(); err != nil {
			log.Printf("Error closing event store: %v", err)
		}
	}
	log.Println("All resources cleaned up")
}
