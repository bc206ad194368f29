package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway"
	healthcheck "github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	cartsvc "github.com/vladislavdragonenkov/checkout/internal/service/cart"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/idempotency"
	"github.com/vladislavdragonenkov/checkout/internal/service/outbox"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
	"github.com/vladislavdragonenkov/checkout/internal/service/rest"
	"github.com/vladislavdragonenkov/checkout/internal/service/shipping"
	"github.com/vladislavdragonenkov/checkout/internal/version"
)

// Run собирает зависимости по конфигурации и держит сервис до отмены ctx:
// REST API, ops-сервер с метриками и health-чеками, outbox-воркер и
// уборщик idempotency-ключей.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if deps.closeFn != nil {
		defer func() {
			if err := deps.closeFn(); err != nil {
				logger.WithError(err).Warn("не удалось закрыть хранилище")
			}
		}()
	}

	registry := newGatewayRegistry(cfg, logger)

	carts := cartsvc.NewService(deps.store, deps.store.Catalog(), nil)
	orders := checkout.NewService(deps.store,
		shipping.NewFlatFeeQuoter(cfg.ShippingFeeMinor), cfg.Currency, nil)
	coordinator := payment.NewCoordinator(deps.store, registry, orders, nil)

	restServer := rest.NewServer(rest.Config{
		UploadsDir:     cfg.UploadsDir,
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.AllowedOrigins,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}, carts, orders, coordinator, deps.store.Idempotency(), nil)

	// Фоновые воркеры живут до graceful shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workers sync.WaitGroup

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Warn("kafka недоступна, события останутся в outbox")
	}
	if producer != nil {
		worker := outbox.NewWorker(deps.store.Outbox(), kafka.NewOutboxPublisher(producer),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(workerCtx)
		}()
	}

	cleanup := idempotency.NewCleanupWorker(deps.store.Idempotency(),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	workers.Add(1)
	go func() {
		defer workers.Done()
		cleanup.Run(workerCtx)
	}()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	opsSrv := startOpsServer(cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: restServer.Handler()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("REST API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	stopAll := func() {
		shutdownHTTP(opsSrv, logger)
		stopWorkers()
		workers.Wait()
		closeKafkaProducer(producer, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP-серверы")
		shutdownHTTP(apiSrv, logger)
		stopAll()
		return ctx.Err()
	case err := <-errCh:
		stopAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newGatewayRegistry собирает доступные платёжные шлюзы. Ручной поток
// доступен всегда; redirect-шлюз требует конфигурации.
func newGatewayRegistry(cfg Config, logger *log.Entry) *gateway.Registry {
	gateways := []domain.PaymentGateway{gateway.NewManualGateway()}
	if cfg.GatewayBaseURL != "" {
		gateways = append(gateways, gateway.NewRedirectGateway(gateway.RedirectConfig{
			BaseURL:     cfg.GatewayBaseURL,
			MerchantID:  cfg.GatewayMerchantID,
			CallbackURL: cfg.GatewayCallbackURL,
			Timeout:     cfg.GatewayTimeout,
		}, nil))
	} else {
		logger.Warn("redirect-шлюз не сконфигурирован, доступен только ручной поток оплаты")
	}
	return gateway.NewRegistry(gateways...)
}

// startOpsServer поднимает HTTP-сервер операционных ручек.
func startOpsServer(addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops-сервер завершился с ошибкой")
		}
	}()
	return srv
}

// shutdownHTTP гасит HTTP-сервер с таймаутом.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown HTTP-сервера не уложился в таймаут")
	}
}
