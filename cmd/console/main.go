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

	"github.com/xela07ax/dmlguard/internal/console/handler"
	"github.com/xela07ax/dmlguard/internal/console/server"
	"github.com/xela07ax/dmlguard/internal/console/service"
	"github.com/xela07ax/dmlguard/internal/infra"
	"github.com/xela07ax/dmlguard/internal/repository/postgres"

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

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инициализация ресурсов
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ruleRepo, err := postgres.NewRuleRepo(appCtx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to init rule repository", zap.Error(err))
	}

	auditRepo, err := postgres.NewAuditRepo(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to init audit storage", zap.Error(err))
	}

	// 3. Инициализация слоев (Dependency Injection)
	ruleService := service.NewRuleService(ruleRepo, rdb, logger)
	principalService := service.NewPrincipalService(rdb, logger)
	auditService := service.NewAuditService(auditRepo)

	consoleSrv := server.NewConsoleServer(
		cfg,
		logger,
		handler.NewRuleHandler(ruleService),
		handler.NewPrincipalHandler(principalService),
		handler.NewAuditHandler(auditService),
	)

	// 4. Запуск сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("console API stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
