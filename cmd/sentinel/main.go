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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-sentinel/internal/analyzer"
	"github.com/xela07ax/spaceai-sentinel/internal/api"
	"github.com/xela07ax/spaceai-sentinel/internal/audit"
	"github.com/xela07ax/spaceai-sentinel/internal/engine"
	"github.com/xela07ax/spaceai-sentinel/internal/infra"
	infraauth "github.com/xela07ax/spaceai-sentinel/internal/infra/auth"
	"github.com/xela07ax/spaceai-sentinel/internal/intel"
	"github.com/xela07ax/spaceai-sentinel/internal/notifier"
	"github.com/xela07ax/spaceai-sentinel/internal/repository/postgres"
	"github.com/xela07ax/spaceai-sentinel/internal/response"
	"github.com/xela07ax/spaceai-sentinel/internal/scorer"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	repo, err := postgres.NewThreatRepo(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to init postgres", zap.Error(err))
	}
	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := repo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	// Асинхронный след детекции: события и действия летят в базу пачками
	trail := audit.NewTrail(repo, cfg.Audit.BufferSize, cfg.Audit.BatchSize, cfg.Audit.FlushInterval, logger)
	trail.Start()

	// Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	trail.SetFillGauge(metrics.AuditBufferFill.Set)

	// 3. Детекционный конвейер
	behavior := analyzer.New(cfg.Detection.WindowSize, logger)

	// Разведка потребляет события скоринга асинхронно, через fanout
	intelligence := intel.New(cfg.Detection.IntelEventCap, logger)
	fanout := engine.NewEventFanout(cfg.Audit.BufferSize, logger, intelligence, trail)
	fanout.Start()

	threatScorer := scorer.New(behavior, fanout, cfg.Detection.ThreatLogCap, logger)

	// 4. Автономное реагирование
	pager := notifier.NewPager(cfg.Notifier, logger)
	signals := response.NewRedisSignals(rdb, logger)
	responder := response.New(cfg.Response.EscalationThreshold, logger,
		response.WithExecutor(pager),
		response.WithNotifier(pager),
		response.WithSignals(signals),
		response.WithStore(repo),
		response.WithHistoryCap(cfg.Response.HistoryCap),
		response.WithResultSink(trail.LogResult),
	)

	// Восстановление после рестарта: живые карантины из Postgres
	// гидратируют респондер, те же ID греют Redis для enforcement-плоскости
	bootCtx, bootCancel := context.WithTimeout(appCtx, 5*time.Second)
	active, err := repo.ActiveQuarantines(bootCtx)
	bootCancel()
	if err != nil {
		logger.Warn("could not load active quarantines", zap.Error(err))
	}
	responder.Restore(active)

	quarantinedIDs := make([]string, 0, len(active))
	for _, s := range active {
		quarantinedIDs = append(quarantinedIDs, s.AgentID)
	}
	if err := signals.Warmup(appCtx, quarantinedIDs); err != nil {
		logger.Warn("quarantine warmup failed", zap.Error(err))
	}

	// Оператор может снять карантин командой из консоли (Redis Pub/Sub)
	go engine.StartReleaseListener(appCtx, rdb, responder, logger)

	core := engine.NewCore(behavior, threatScorer, responder, metrics, logger)

	// 5. HTTP API
	pubKey, err := infraauth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}
	privKey, err := infraauth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}

	validator := infraauth.NewBaseValidator(pubKey)
	authService := api.NewAuthService(repo, privKey, cfg.Auth.TokenTTL)
	handler := api.NewHandler(core, behavior, threatScorer, intelligence, responder, logger)
	server := api.NewServer(logger, validator, handler, api.NewAuthHandler(authService))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Экспортируем метрики для Prometheus отдельным портом
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("sentinel started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 6. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-stop // Ждем сигнал
	logger.Info("sentinel stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	cancel()       // Останавливаем слушателей Redis
	fanout.Stop()  // Дочитываем события для разведки и следа
	trail.Stop()   // Final Flush в Postgres
	logger.Info("sentinel exited properly")
}
