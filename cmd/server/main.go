// Package main wires the WhatsApp gateway's composition root.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/wagateway/core/internal/adapters/blob"
	"github.com/wagateway/core/internal/adapters/gateway"
	"github.com/wagateway/core/internal/adapters/handler"
	"github.com/wagateway/core/internal/adapters/queue"
	"github.com/wagateway/core/internal/adapters/repository"
	ws "github.com/wagateway/core/internal/adapters/websocket"
	"github.com/wagateway/core/internal/config"
	"github.com/wagateway/core/internal/core/ports"
	"github.com/wagateway/core/internal/core/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "environment", cfg.App.Environment, "version", cfg.App.Version)

	db := connectMariaDB(cfg.DB, 5, 2*time.Second)
	defer db.Close()
	slog.Info("mariadb connection established")

	var rdb *redis.Client
	if cfg.Dedupe.Backend == "kv" || cfg.Dedupe.OutboundBackend == "kv" {
		rdb = connectRedis(cfg.Redis, 5, 2*time.Second)
		defer rdb.Close()
		slog.Info("redis connection established")
	}

	auditHub := ws.NewAuditHub(cfg.App.MeshSecret)
	go auditHub.Run()

	inboundDedupe := selectDedupeStore(cfg.Dedupe.Backend, rdb, db, "dedupe_inbound")
	outboundDedupe := selectDedupeStore(cfg.Dedupe.OutboundBackend, rdb, db, "dedupe_outbound")
	floodStore := selectFloodStore(rdb)
	sessionStore := selectSessionStore(cfg.Session.Backend, db)

	auditStore := repository.NewMariaDBAuditStore(db)
	inboundLogStore := repository.NewMariaDBInboundLogStore(db)

	exportStore, err := newExportStore(cfg.Export.GCSBucket)
	if err != nil {
		slog.Error("failed to init export store", "error", err)
		os.Exit(1)
	}

	taskQueue := selectTaskQueue(cfg.Queue.Backend, cfg.Queue.PushBaseURL, cfg.Queue.InternalToken)

	sessions := services.NewSessionManager(sessionStore, cfg.Session.Timeout, cfg.Session.MaxIntents, cfg.Session.MaxHistory)
	abuse := services.NewAbuseGuard(floodStore, cfg.Flood.Threshold, cfg.Flood.Window, sessions)
	audit := services.NewAuditChain(auditStore, exportStore, auditHub)

	llmClient := gateway.NewLLMClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Stage1Model, cfg.LLM.Stage2Model, cfg.LLM.Stage3Model)
	emergency := services.NewEmergencyMode()
	guardedLLM := services.NewEmergencyLLMClient(llmClient, emergency, cfg.LLM.Enabled)
	pipeline := services.NewPipeline(guardedLLM, cfg.LLM.Stage1Timeout, cfg.LLM.Stage2Timeout, cfg.LLM.Stage3Timeout, cfg.LLM.DeciderTimeout, cfg.LLM.AcceptThreshold, cfg.LLM.MinResponseOptions)

	var breaker *services.CircuitBreaker
	if cfg.Breaker.Enabled {
		breaker = services.NewCircuitBreaker(cfg.Breaker.FailMax, cfg.Breaker.ResetTimeout, cfg.Breaker.HalfOpenMax)
	}
	metricsHandler := handler.NewMetricsHandler(cfg.Queue.InternalToken, emergency, breaker)
	whatsappClient := gateway.NewWhatsAppClient(cfg.Webhook.APIBaseURL, cfg.Webhook.PhoneNumberID, cfg.Webhook.AccessToken)
	dispatcher := services.NewOutboundDispatcher(whatsappClient, outboundDedupe, breaker, cfg.Dedupe.TTL, cfg.Dispatch.BaseBackoff, cfg.Dispatch.MaxBackoff, cfg.Dispatch.MaxRetries)

	worker := services.NewWorker(inboundDedupe, cfg.Dedupe.TTL, sessions, abuse, pipeline, dispatcher, audit, cfg.Webhook.PhoneNumberID)
	admission := services.NewAdmissionService(inboundDedupe, taskQueue, cfg.Webhook.Secret, cfg.Webhook.VerifyToken, cfg.App.Environment, cfg.Dedupe.TTL)

	ctx, cancel := context.WithCancel(context.Background())
	services.RunWatchdog(ctx, db, emergency, services.DefaultWatchdogConfig())

	if mq, ok := taskQueue.(*queue.MemoryQueue); ok {
		go mq.Run(ctx, func(taskCtx context.Context, task ports.InboundTask) error {
			_, procErr := worker.Process(taskCtx, task)
			if procErr != nil {
				slog.Error("worker processing failed", "error", procErr, "inbound_event_id", task.InboundEventID)
			}
			_ = inboundLogStore.RecordProcessing(taskCtx, task.InboundEventID, processingStatus(procErr), detailOf(procErr), cfg.Dedupe.TTL)
			return procErr
		})
	}

	router := buildRouter(cfg, admission, worker, dispatcher, auditHub, metricsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "port", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutdown signal received, draining in-flight requests")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	slog.Info("shutdown complete")
}

func buildRouter(cfg *config.Config, admission *services.AdmissionService, worker *services.Worker, dispatcher *services.OutboundDispatcher, auditHub *ws.AuditHub, metricsHandler *handler.MetricsHandler) http.Handler {
	r := chi.NewRouter()

	webhookHandler := handler.NewWebhookHandler(admission)
	internalHandler := handler.NewInternalHandler(cfg.Queue.InternalToken, worker, dispatcher)
	healthHandler := handler.NewHealthHandler(cfg.App.Version)

	r.Get("/health", healthHandler.ServeHTTP)
	r.Get("/webhooks/whatsapp", webhookHandler.HandleVerify)
	r.Post("/webhooks/whatsapp", webhookHandler.HandlePost)
	r.Post("/internal/process_inbound", internalHandler.HandleProcessInbound)
	r.Post("/internal/process_outbound", internalHandler.HandleProcessOutbound)
	r.Get("/internal/audit/stream", auditHub.ServeWS)
	r.Get("/internal/metrics", metricsHandler.ServeHTTP)

	return r
}

func selectDedupeStore(backend string, rdb *redis.Client, db *sql.DB, table string) ports.DedupeStore {
	switch backend {
	case "kv":
		if rdb != nil {
			return repository.NewRedisDedupeStore(rdb)
		}
	case "document":
		return repository.NewMariaDBDedupeStore(db, table)
	}
	return repository.NewMemoryDedupeStore()
}

func selectSessionStore(backend string, db *sql.DB) ports.SessionStore {
	if backend == "memory" {
		return repository.NewMemorySessionStore()
	}
	return repository.NewMariaDBSessionStore(db)
}

func selectFloodStore(rdb *redis.Client) ports.FloodStore {
	if rdb != nil {
		return repository.NewRedisFloodStore(rdb)
	}
	return repository.NewMemoryFloodStore()
}

func selectTaskQueue(backend, pushBaseURL, internalToken string) ports.TaskQueue {
	if backend == "push_http" {
		return queue.NewPushHTTPQueue(pushBaseURL, internalToken)
	}
	return queue.NewMemoryQueue(256)
}

func newExportStore(bucket string) (ports.ExportStore, error) {
	if bucket == "" {
		return noopExportStore{}, nil
	}
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, err
	}
	return blob.NewGCSExportStore(client, bucket), nil
}

// noopExportStore backs EXPORT_GCS_BUCKET="" (development default): audit
// chain writes still work, only ExportEvents becomes unavailable.
type noopExportStore struct{}

func (noopExportStore) PutExport(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	return "", errors.New("export store not configured: set EXPORT_GCS_BUCKET")
}

func processingStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "processed"
}

func detailOf(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}

// connectMariaDB retries the initial ping, since the DB container may
// still be starting when this process does.
func connectMariaDB(cfg config.DBConfig, maxRetries int, retryDelay time.Duration) *sql.DB {
	dsn := cfg.GetDSN()

	var db *sql.DB
	var err error
	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				return db
			}
			db.Close()
		}
		slog.Warn("mariadb connection attempt failed", "attempt", i, "max_attempts", maxRetries, "error", err)
		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}
	slog.Error("cannot connect to mariadb, giving up", "attempts", maxRetries, "error", err)
	os.Exit(1)
	return nil
}

// connectRedis retries the initial ping for the same reason.
func connectRedis(cfg config.RedisConfig, maxRetries int, retryDelay time.Duration) *redis.Client {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	ctx := context.Background()

	var err error
	for i := 1; i <= maxRetries; i++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return rdb
		}
		slog.Warn("redis connection attempt failed", "attempt", i, "max_attempts", maxRetries, "error", err)
		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}
	slog.Error("cannot connect to redis, giving up", "attempts", maxRetries, "error", err)
	os.Exit(1)
	return nil
}
