// Package chat — оркестратор хода диалога: контроль доступа, учёт сообщения,
// вызов генерации и откат счётчика при сбое.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PromaticSolutions/FluencyAi/internal/catalog"
	"github.com/PromaticSolutions/FluencyAi/internal/entitlement"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/sl"
	"github.com/PromaticSolutions/FluencyAi/internal/metrics"
	"github.com/PromaticSolutions/FluencyAi/internal/models"
)

// Параметры генерации одного хода диалога.
const (
	generationTemperature = 0.7
	generationMaxTokens   = 500
)

// ErrLimitReached возвращается, когда лимит сообщений плана исчерпан.
var ErrLimitReached = errors.New("plan message limit reached")

// Entitlements описывает операции тарификации, нужные для одного хода диалога.
type Entitlements interface {
	UserPlan(ctx context.Context, username string) (catalog.Plan, error)
	ConsumeTurn(ctx context.Context, username string) (entitlement.Decision, error)
	ReleaseTurn(ctx context.Context, username string) error
}

// Generator описывает клиент сервиса генерации текста.
type Generator interface {
	GenerateChat(ctx context.Context, messages []models.ChatMessage, temperature float64, maxTokens int) (string, error)
}

// Service связывает тарификацию и генерацию в один ход диалога.
type Service struct {
	entitlements Entitlements
	generator    Generator
	log          *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(entitlements Entitlements, generator Generator, log *slog.Logger) *Service {
	return &Service{
		entitlements: entitlements,
		generator:    generator,
		log:          log,
	}
}

// Turn выполняет один ход диалога.
//
// Порядок строгий: сначала доступ к паре (сценарий, язык), затем резервирование
// единицы счётчика, и только потом генерация. Сбой генерации возвращает
// зарезервированную единицу, чтобы неудачный ход не расходовал бюджет.
func (s *Service) Turn(ctx context.Context, username string, req models.DummyChatRequest) (models.ChatResult, error) {
	const op = "chat.Turn"

	plan, err := s.entitlements.UserPlan(ctx, username)
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := entitlement.Authorize(plan, req.ScenarioID, req.Language); err != nil {
		if errors.Is(err, entitlement.ErrScenarioNotInPlan) {
			metrics.EntitlementDenials.WithLabelValues("scenario_not_in_plan").Inc()
		} else if errors.Is(err, entitlement.ErrLanguageNotInPlan) {
			metrics.EntitlementDenials.WithLabelValues("language_not_in_plan").Inc()
		}
		return models.ChatResult{}, fmt.Errorf("%s: %w", op, err)
	}

	decision, err := s.entitlements.ConsumeTurn(ctx, username)
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !decision.Allowed {
		return models.ChatResult{}, fmt.Errorf("%s: %w", op, ErrLimitReached)
	}

	messages := make([]models.ChatMessage, 0, len(req.Messages)+1)
	messages = append(messages, models.ChatMessage{
		Role:    "system",
		Content: BuildSystemPrompt(req.ScenarioID, req.Language),
	})
	messages = append(messages, req.Messages...)

	reply, err := s.generator.GenerateChat(ctx, messages, generationTemperature, generationMaxTokens)
	if err != nil {
		metrics.GenerationFailures.Inc()
		// Возвращаем зарезервированную единицу: неудачный ход бюджет не тратит.
		if releaseErr := s.entitlements.ReleaseTurn(context.WithoutCancel(ctx), username); releaseErr != nil {
			s.log.Error("failed to release reserved turn", slog.String("username", username), sl.Err(releaseErr))
		}
		return models.ChatResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.ChatResult{
		Message:           reply,
		RemainingCredits:  decision.RemainingCredits,
		TotalMessagesSent: decision.TotalMessagesSent,
		PlanID:            decision.PlanID,
	}, nil
}
