package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xela07ax/dmlguard/internal/audit"
	"github.com/xela07ax/dmlguard/internal/domain"
	"github.com/xela07ax/dmlguard/internal/engine"
	"github.com/xela07ax/dmlguard/internal/infra"
	"github.com/xela07ax/dmlguard/internal/policy"
	"github.com/xela07ax/dmlguard/internal/repository/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин.
	// При завершении main() или срабатывании SIGTERM, cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pgEngine, err := postgres.NewPgEngine(appCtx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to init postgres engine", zap.Error(err))
	}
	defer pgEngine.Close()

	// Проверяем соединение с таймаутом
	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := pgEngine.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	// Репозиторий правил живёт на том же пуле, что и engine
	ruleRepo := postgres.NewRuleRepoWithPool(pgEngine.Pool())

	auditRepo, err := postgres.NewAuditRepo(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to init audit storage", zap.Error(err))
	}

	// 3. Decision trail: события решений летят в базу пачками
	trail := audit.NewTrail(auditRepo, logger, cfg.Audit.BufferSize, cfg.Audit.FlushInterval)
	trail.Start()
	defer trail.Stop()

	// 4. Control Plane (правила и блокировки)
	eval := policy.NewMemoEvaluator(ruleRepo, logger)
	if err := eval.Refresh(appCtx); err != nil {
		logger.Fatal("failed to load access rules", zap.Error(err))
	}
	go policy.ListenRuleUpdates(appCtx, rdb, logger, infra.RedisChanRuleUpdate, eval)

	blocklist := engine.NewBlocklistManager(rdb, logger)
	if err := blocklist.Init(appCtx); err != nil {
		logger.Fatal("failed to init blocklist manager", zap.Error(err))
	}
	go blocklist.StartListener(appCtx)

	// 5. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// Заполненность буфера аудита как gauge
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				metrics.TrailBufferFill.Set(float64(trail.Len()))
			}
		}
	}()

	// Экспортируем метрики для Prometheus
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// 6. Execution Layer: оборачиваем engine в Reliability (Rate Limit, Circuit Breaker)
	safeEngine := engine.NewReliableEngine(pgEngine, metrics)

	// 7. Сессия шлюза с дефолтами из конфига
	session := engine.NewSession(safeEngine, eval, trail, metrics, logger)

	trust, err := domain.ParseTrustLevel(cfg.Guard.TrustLevel)
	if err != nil {
		logger.Fatal("invalid guard.trust_level", zap.Error(err))
	}
	session.SetTrustLevel(trust).SetAllOrNone(cfg.Guard.AllOrNone)
	if cfg.Guard.RequireAllFields {
		session.RequireAllFields()
	}
	for object, fields := range cfg.Guard.RequiredFields {
		if err := session.RequireFields(object, fields...); err != nil {
			logger.Fatal("invalid guard.required_fields", zap.String("object", object), zap.Error(err))
		}
	}

	// 8. HTTP Server.
	// Цепочка защиты: Trace -> Blocklist -> Principal. Порядок важен:
	// заблокированный субъект отсекается до любой работы с данными
	gateway := engine.NewGateway(session, logger)

	r := chi.NewRouter()
	r.Use(engine.TracingMiddleware)
	r.Use(blocklist.Middleware)
	r.Use(engine.PrincipalMiddleware)
	r.Mount("/v1/data", gateway.Routes())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("guard gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("guard gateway stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("guard gateway exited properly")
}
