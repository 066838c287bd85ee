// Package entitlement содержит бизнес-логику тарификации: учёт сообщений,
// контроль доступа к сценариям и языкам, списание кредитов и применение покупок.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PromaticSolutions/FluencyAi/internal/catalog"
	"github.com/PromaticSolutions/FluencyAi/internal/metrics"
	"github.com/PromaticSolutions/FluencyAi/internal/models"
	"github.com/PromaticSolutions/FluencyAi/internal/storage/repository"
)

// Ошибки контроля доступа и списания кредитов.
var (
	// ErrScenarioNotInPlan возвращается, когда сценарий не входит в план.
	ErrScenarioNotInPlan = errors.New("scenario not in plan")
	// ErrLanguageNotInPlan возвращается, когда язык не входит в план.
	ErrLanguageNotInPlan = errors.New("language not in plan")
	// ErrInsufficientCredits возвращается при списании с нулевого баланса.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrUnknownPlan возвращается при попытке применить покупку несуществующего плана.
	ErrUnknownPlan = errors.New("unknown plan")
)

// DenyReason — причина отказа в новом ходе диалога.
type DenyReason string

// DenyLimitReached — достигнут лимит сообщений плана.
const DenyLimitReached DenyReason = "limit_reached"

// Decision — результат учёта одного хода диалога.
//
// Success отражает, уложился ли в бюджет именно этот ход: счётчик уже
// увеличен, и при Success=false лимит сработает на следующем вызове,
// а не задним числом на текущем.
type Decision struct {
	Allowed           bool       // Ход разрешён
	Success           bool       // Ход в пределах бюджета
	Reason            DenyReason // Причина отказа (при Allowed=false)
	RemainingCredits  int        // Баланс кредитов (0 для безлимитных планов)
	TotalMessagesSent int        // Счётчик сообщений (0 для безлимитных планов)
	PlanID            string     // Идентификатор плана пользователя
}

// AccountRepository определяет методы работы с учётными записями в хранилище.
type AccountRepository interface {
	// GetUserByUsername возвращает пользователя или repository.ErrUserNotFound.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// IncrementMessageCount атомарно увеличивает счётчик, пока он меньше лимита.
	IncrementMessageCount(ctx context.Context, username string, limit int) (int, error)
	// DecrementMessageCount возвращает зарезервированную единицу счётчика.
	DecrementMessageCount(ctx context.Context, username string) error
	// DeductCredit атомарно списывает один кредит.
	DeductCredit(ctx context.Context, username string) (int, error)
	// SetCredits выставляет баланс кредитов.
	SetCredits(ctx context.Context, username string, credits int) error
	// AddCredits пополняет баланс кредитов.
	AddCredits(ctx context.Context, username string, amount int) (int, error)
	// SetPlan переводит пользователя на план.
	SetPlan(ctx context.Context, username, planID string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует учёт сообщений и контроль доступа поверх хранилища.
// Кешируется только идентификатор плана пользователя; счётчики и кредиты
// читаются из хранилища на каждый ход.
type Service struct {
	repo  AccountRepository
	cache Cache
	log   *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo AccountRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Authorize проверяет доступ плана к паре (сценарий, язык).
// Сценарий проверяется раньше языка: при двойном несоответствии пользователь
// получает сообщение именно о сценарии. Функция чистая и используется как
// единственная точка правды для любых проверок доступа.
func Authorize(plan catalog.Plan, scenarioID, languageID string) error {
	if !plan.HasScenario(scenarioID) {
		return ErrScenarioNotInPlan
	}
	if !plan.HasLanguage(languageID) {
		return ErrLanguageNotInPlan
	}
	return nil
}

// ConsumeTurn решает, разрешён ли новый ход диалога, и продвигает счётчик.
//
// Для планов с конечным лимитом счётчик резервируется атомарным условным
// инкрементом до вызова генерации; при неудачной генерации вызывающая сторона
// возвращает единицу через ReleaseTurn. Кредиты этим методом не списываются —
// списание остаётся отдельной операцией DeductCredit.
func (s *Service) ConsumeTurn(ctx context.Context, username string) (Decision, error) {
	const op = "entitlement.ConsumeTurn"

	account, err := s.account(ctx, username)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	plan := s.planOf(account)

	if plan.Unlimited() {
		metrics.ChatTurns.Inc()
		return Decision{
			Allowed:           true,
			Success:           true,
			RemainingCredits:  0,
			TotalMessagesSent: 0,
			PlanID:            plan.ID,
		}, nil
	}

	limit := *plan.MessageLimit
	if account.TotalMessagesSent >= limit {
		metrics.EntitlementDenials.WithLabelValues(string(DenyLimitReached)).Inc()
		return Decision{
			Allowed:           false,
			Success:           false,
			Reason:            DenyLimitReached,
			RemainingCredits:  account.Credits,
			TotalMessagesSent: account.TotalMessagesSent,
			PlanID:            plan.ID,
		}, nil
	}

	newTotal := account.TotalMessagesSent + 1
	if account.UUID != "" {
		newTotal, err = s.repo.IncrementMessageCount(ctx, username, limit)
		if errors.Is(err, repository.ErrMessageLimitReached) {
			// Параллельный ход того же пользователя успел исчерпать лимит.
			metrics.EntitlementDenials.WithLabelValues(string(DenyLimitReached)).Inc()
			return Decision{
				Allowed:           false,
				Success:           false,
				Reason:            DenyLimitReached,
				RemainingCredits:  account.Credits,
				TotalMessagesSent: limit,
				PlanID:            plan.ID,
			}, nil
		}
		if err != nil {
			return Decision{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	metrics.ChatTurns.Inc()
	return Decision{
		Allowed:           true,
		Success:           newTotal < limit,
		RemainingCredits:  account.Credits,
		TotalMessagesSent: newTotal,
		PlanID:            plan.ID,
	}, nil
}

// ReleaseTurn возвращает зарезервированную единицу счётчика после неудачной
// генерации. Для безлимитных планов и отсутствующих записей — no-op.
func (s *Service) ReleaseTurn(ctx context.Context, username string) error {
	const op = "entitlement.ReleaseTurn"

	account, err := s.account(ctx, username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.planOf(account).Unlimited() || account.UUID == "" {
		return nil
	}
	if err := s.repo.DecrementMessageCount(ctx, username); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeductCredit списывает один кредит. Для безлимитных планов — no-op с
// нулевым остатком, при пустом балансе возвращает ErrInsufficientCredits.
// Ход диалога кредиты не расходует: когда вызывать списание, решает вызывающая
// сторона.
func (s *Service) DeductCredit(ctx context.Context, username string) (int, error) {
	const op = "entitlement.DeductCredit"

	account, err := s.account(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	plan := s.planOf(account)
	if plan.Credits == nil {
		return 0, nil
	}
	if account.UUID == "" {
		metrics.EntitlementDenials.WithLabelValues("insufficient_credits").Inc()
		return 0, fmt.Errorf("%s: %w", op, ErrInsufficientCredits)
	}

	remaining, err := s.repo.DeductCredit(ctx, username)
	if errors.Is(err, repository.ErrInsufficientCredits) {
		metrics.EntitlementDenials.WithLabelValues("insufficient_credits").Inc()
		return 0, fmt.Errorf("%s: %w", op, ErrInsufficientCredits)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return remaining, nil
}

// UserPlan возвращает план пользователя, используя кеш идентификаторов планов.
// Отсутствие записи или неизвестный план деградируют до бесплатного плана.
func (s *Service) UserPlan(ctx context.Context, username string) (catalog.Plan, error) {
	const op = "entitlement.UserPlan"

	cacheKey := planCacheKey(username)
	var planID string
	found, err := s.cache.Get(cacheKey, &planID)
	if err != nil {
		s.log.Warn("failed to read plan from cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
	if found {
		if plan, ok := catalog.PlanByID(planID); ok {
			return plan, nil
		}
	}

	account, err := s.account(ctx, username)
	if err != nil {
		return catalog.Plan{}, fmt.Errorf("%s: %w", op, err)
	}
	plan := s.planOf(account)

	if err := s.cache.Set(cacheKey, plan.ID, 10*time.Minute); err != nil {
		s.log.Warn("failed to cache plan", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return plan, nil
}

// Credits возвращает баланс кредитов и счётчик сообщений пользователя.
// Для отсутствующей записи возвращаются нули.
func (s *Service) Credits(ctx context.Context, username string) (credits, totalMessagesSent int, err error) {
	const op = "entitlement.Credits"

	account, aerr := s.account(ctx, username)
	if aerr != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, aerr)
	}
	return account.Credits, account.TotalMessagesSent, nil
}

// ApplyPurchase переводит пользователя на купленный план и выставляет баланс
// кредитов в стартовое значение плана (0 для безлимитного). Кеш плана
// инвалидируется, чтобы новый доступ действовал со следующего запроса.
func (s *Service) ApplyPurchase(ctx context.Context, username, planID string) error {
	const op = "entitlement.ApplyPurchase"

	plan, ok := catalog.PlanByID(planID)
	if !ok {
		return fmt.Errorf("%s: %w: %s", op, ErrUnknownPlan, planID)
	}

	if err := s.repo.SetPlan(ctx, username, plan.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	credits := 0
	if plan.Credits != nil {
		credits = *plan.Credits
	}
	if err := s.repo.SetCredits(ctx, username, credits); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Invalidate(planCacheKey(username)); err != nil {
		s.log.Warn("failed to invalidate plan cache", slog.String("username", username), slog.Any("err", err))
	}
	s.log.Info("purchase applied", slog.String("username", username), slog.String("plan", plan.ID))
	return nil
}

// ApplyCreditPack пополняет баланс пользователя кредитами разового пакета.
func (s *Service) ApplyCreditPack(ctx context.Context, username, productID string) (int, error) {
	const op = "entitlement.ApplyCreditPack"

	for _, product := range catalog.Products {
		if product.ID == productID {
			newBalance, err := s.repo.AddCredits(ctx, username, product.Credits)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", op, err)
			}
			return newBalance, nil
		}
	}
	return 0, fmt.Errorf("%s: unknown product: %s", op, productID)
}

// account читает учётную запись, деградируя отсутствующую строку до
// бесплатного плана с нулевыми счётчиками (UUID остаётся пустым — признак
// того, что персистентность для этой записи пропускается).
func (s *Service) account(ctx context.Context, username string) (*models.User, error) {
	account, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.log.Warn("account row missing, falling back to free plan defaults",
			slog.String("username", username))
		return &models.User{Username: username, PlanID: catalog.FreePlan().ID}, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// planOf возвращает план учётной записи с откатом на бесплатный.
func (s *Service) planOf(account *models.User) catalog.Plan {
	if plan, ok := catalog.PlanByID(account.PlanID); ok {
		return plan
	}
	return catalog.FreePlan()
}

func planCacheKey(username string) string {
	return fmt.Sprintf("userplan:%s", username)
}
