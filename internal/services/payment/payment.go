// Package payment содержит бизнес-логику покупок: создание сессий Stripe
// Checkout и применение подтверждённых покупок из вебхуков.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/PromaticSolutions/FluencyAi/internal/catalog"
	"github.com/PromaticSolutions/FluencyAi/internal/config"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/rabbitmq"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/sl"
	"github.com/PromaticSolutions/FluencyAi/internal/models"
	"github.com/PromaticSolutions/FluencyAi/internal/paymentprovider"
)

// Ошибки сервиса покупок.
var (
	// ErrPlanNotPurchasable возвращается для планов без цены в Stripe.
	ErrPlanNotPurchasable = errors.New("plan is not purchasable")
	// ErrInvalidSignature возвращается при неверной подписи вебхука.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CheckoutProvider описывает создание сессий оплаты у платёжного провайдера.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, username, planID, priceID, successURL, cancelURL string) (*paymentprovider.CheckoutSession, error)
}

// Entitlements описывает применение покупки к учётной записи.
type Entitlements interface {
	ApplyPurchase(ctx context.Context, username, planID string) error
}

// UserLookup описывает чтение учётной записи для письма-подтверждения.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Publisher публикует события в очередь уведомлений.
type Publisher interface {
	Publish(exchange, routingKey string, message any) error
}

// ChannelPublisher реализует Publisher поверх канала RabbitMQ.
type ChannelPublisher struct {
	Ch *amqp.Channel
}

// Publish публикует сообщение в RabbitMQ.
func (p *ChannelPublisher) Publish(exchange, routingKey string, message any) error {
	return rabbitmq.PublishMessage(p.Ch, exchange, routingKey, message)
}

// PaymentService отвечает за покупки планов.
type PaymentService struct {
	provider     CheckoutProvider
	entitlements Entitlements
	users        UserLookup
	publisher    Publisher
	cfg          config.Stripe
	log          *slog.Logger
}

// New создает новый экземпляр PaymentService.
func New(provider CheckoutProvider, entitlements Entitlements, users UserLookup,
	publisher Publisher, cfg config.Stripe, log *slog.Logger) *PaymentService {
	return &PaymentService{
		provider:     provider,
		entitlements: entitlements,
		users:        users,
		publisher:    publisher,
		cfg:          cfg,
		log:          log,
	}
}

// CreateCheckout создаёт сессию оплаты для покупки плана и возвращает URL,
// куда нужно перенаправить пользователя.
func (s *PaymentService) CreateCheckout(ctx context.Context, username, planID string) (string, error) {
	const op = "payment.CreateCheckout"

	priceID, ok := catalog.StripePriceMap[planID]
	if !ok {
		return "", fmt.Errorf("%s: %w: %s", op, ErrPlanNotPurchasable, planID)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, username, planID, priceID,
		s.cfg.StripeSuccessURL, s.cfg.StripeCancelURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("checkout session created",
		slog.String("username", username),
		slog.String("plan", planID),
		slog.String("session_id", session.ID))
	return session.URL, nil
}

// ProcessWebhook проверяет подпись вебхука Stripe и применяет подтверждённую
// покупку: переводит пользователя на план и публикует событие для письма.
// События других типов подтверждаются без обработки.
func (s *PaymentService) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	const op = "payment.ProcessWebhook"

	event, err := paymentprovider.VerifyWebhook(payload, signatureHeader, s.cfg.StripeWebhookSecret)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		s.log.Info("ignoring webhook event", slog.String("type", event.Type))
		return nil
	}

	var session paymentprovider.CheckoutSessionCompleted
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	username := session.Metadata["username"]
	if username == "" {
		username = session.ClientReferenceID
	}
	planID := session.Metadata["plan_id"]
	if username == "" || planID == "" {
		return fmt.Errorf("%s: checkout session %s has no username or plan_id metadata", op, session.ID)
	}

	if err := s.entitlements.ApplyPurchase(ctx, username, planID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publishPurchaseEvent(ctx, username, planID, session.CustomerDetails.Email)
	return nil
}

// publishPurchaseEvent отправляет событие покупки в очередь уведомлений.
// Сбой публикации покупку не откатывает: письмо — best effort.
func (s *PaymentService) publishPurchaseEvent(ctx context.Context, username, planID, fallbackEmail string) {
	plan, _ := catalog.PlanByID(planID)
	credits := 0
	if plan.Credits != nil {
		credits = *plan.Credits
	}

	email := fallbackEmail
	if user, err := s.users.GetUserByUsername(ctx, username); err == nil && user.Email != "" {
		email = user.Email
	}

	event := models.PurchaseEvent{
		Email:    email,
		Username: username,
		PlanID:   planID,
		PlanName: plan.Name,
		Credits:  credits,
	}
	if err := s.publisher.Publish(rabbitmq.NotificationsExchange, "purchase", event); err != nil {
		s.log.Error("failed to publish purchase event",
			slog.String("username", username), sl.Err(err))
	}
}
