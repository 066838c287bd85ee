// Package fluencyai собирает основное HTTP-приложение: хранилище, кеш,
// сервисы и сервер с graceful shutdown.
package fluencyai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/PromaticSolutions/FluencyAi/internal/cache"
	chatservice "github.com/PromaticSolutions/FluencyAi/internal/chat"
	"github.com/PromaticSolutions/FluencyAi/internal/config"
	"github.com/PromaticSolutions/FluencyAi/internal/entitlement"
	"github.com/PromaticSolutions/FluencyAi/internal/generation"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/jwt"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/rabbitmq"
	"github.com/PromaticSolutions/FluencyAi/internal/migrations"
	"github.com/PromaticSolutions/FluencyAi/internal/paymentprovider"
	authservice "github.com/PromaticSolutions/FluencyAi/internal/services/auth"
	paymentservice "github.com/PromaticSolutions/FluencyAi/internal/services/payment"
	"github.com/PromaticSolutions/FluencyAi/internal/storage/repository"
)

// App — основное HTTP-приложение.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение из конфигурации: подключает Postgres и Redis,
// прогоняет миграции, настраивает очередь уведомлений и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := authservice.NewAuthService(db, jwtMaker)

	entitlements := entitlement.NewService(db, cacheRedis, logger)
	generator := generation.NewClient(cfg.Generation)
	chatService := chatservice.NewService(entitlements, generator, logger)

	providerClient := paymentprovider.NewClient(cfg.StripeSecretKey)
	publisher := &paymentservice.ChannelPublisher{Ch: ch}
	paymentService := paymentservice.New(providerClient, entitlements, db, publisher, cfg.Stripe, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db, authService, entitlements, chatService, paymentService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if chErr := a.ch.Close(); chErr != nil {
			a.logger.Error("failed to close rabbitmq channel", slog.Any("err", chErr))
		}
		if connErr := a.conn.Close(); connErr != nil {
			a.logger.Error("failed to close rabbitmq connection", slog.Any("err", connErr))
		}
		a.db.DB.Close()
		return err
	}
}
