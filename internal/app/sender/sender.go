// Package sender собирает приложение-потребитель очереди уведомлений:
// слушает события покупок и отправляет письма по SMTP.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/PromaticSolutions/FluencyAi/internal/config"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/rabbitmq"
	smtplib "github.com/PromaticSolutions/FluencyAi/internal/lib/smtp"
	senderservice "github.com/PromaticSolutions/FluencyAi/internal/services/sender"
)

// App — приложение-потребитель уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New подключается к RabbitMQ, объявляет очереди уведомлений
// и создает сервис отправки писем.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtplib.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.NewSenderService(logger, transport)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителей очередей и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	const op = "app.sender.Run"

	for _, queue := range rabbitmq.GetNotificationQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, queue.QueueName, a.senderService.SendPurchaseConfirmation); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		a.logger.Info("consumer started", slog.String("queue", queue.QueueName))
	}

	<-ctx.Done()

	a.logger.Info("shutting down sender")
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close rabbitmq channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close rabbitmq connection", slog.Any("err", err))
	}
	return nil
}
