package entitlement

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PromaticSolutions/FluencyAi/internal/catalog"
	"github.com/PromaticSolutions/FluencyAi/internal/models"
	"github.com/PromaticSolutions/FluencyAi/internal/storage/repository"
)

// MockRepo реализует интерфейс AccountRepository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepo) IncrementMessageCount(ctx context.Context, username string, limit int) (int, error) {
	args := m.Called(ctx, username, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) DecrementMessageCount(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockRepo) DeductCredit(ctx context.Context, username string) (int, error) {
	args := m.Called(ctx, username)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) SetCredits(ctx context.Context, username string, credits int) error {
	args := m.Called(ctx, username, credits)
	return args.Error(0)
}

func (m *MockRepo) AddCredits(ctx context.Context, username string, amount int) (int, error) {
	args := m.Called(ctx, username, amount)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) SetPlan(ctx context.Context, username, planID string) error {
	args := m.Called(ctx, username, planID)
	return args.Error(0)
}

// MockCache реализует интерфейс Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func newTestService(repo *MockRepo, cache *MockCache) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, cache, logger)
}

func freeUser(total, credits int) *models.User {
	return &models.User{
		UUID:              "uid-1",
		Username:          "testuser",
		PlanID:            "free",
		Credits:           credits,
		TotalMessagesSent: total,
	}
}

func TestConsumeTurn_FinitePlan(t *testing.T) {
	tests := []struct {
		name        string
		account     *models.User
		setupMock   func(*MockRepo)
		wantAllowed bool
		wantSuccess bool
		wantTotal   int
		wantCredits int
	}{
		{
			name:    "обычный ход в середине бюджета",
			account: freeUser(10, 3),
			setupMock: func(m *MockRepo) {
				m.On("IncrementMessageCount", mock.Anything, "testuser", 60).Return(11, nil)
			},
			wantAllowed: true,
			wantSuccess: true,
			wantTotal:   11,
			wantCredits: 3,
		},
		{
			name:    "предпоследнее сообщение: разрешено, но лимит достигнут после хода",
			account: freeUser(59, 3),
			setupMock: func(m *MockRepo) {
				m.On("IncrementMessageCount", mock.Anything, "testuser", 60).Return(60, nil)
			},
			wantAllowed: true,
			wantSuccess: false,
			wantTotal:   60,
			wantCredits: 3,
		},
		{
			name:        "лимит исчерпан: отказ без мутации состояния",
			account:     freeUser(60, 2),
			setupMock:   func(_ *MockRepo) {},
			wantAllowed: false,
			wantSuccess: false,
			wantTotal:   60,
			wantCredits: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepo)
			repo.On("GetUserByUsername", mock.Anything, "testuser").Return(tt.account, nil)
			tt.setupMock(repo)

			service := newTestService(repo, new(MockCache))
			decision, err := service.ConsumeTurn(context.Background(), "testuser")

			require.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, decision.Allowed)
			assert.Equal(t, tt.wantSuccess, decision.Success)
			assert.Equal(t, tt.wantTotal, decision.TotalMessagesSent)
			assert.Equal(t, tt.wantCredits, decision.RemainingCredits)
			assert.Equal(t, "free", decision.PlanID)
			repo.AssertExpectations(t)
			if !tt.wantAllowed {
				assert.Equal(t, DenyLimitReached, decision.Reason)
				repo.AssertNotCalled(t, "IncrementMessageCount", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

// Свойство одного хода "в долг": при счётчике limit-1 ход разрешён, но
// помечается как превысивший бюджет, счётчик становится равен лимиту,
// а следующий ход отклоняется.
func TestConsumeTurn_OffByOneGrace(t *testing.T) {
	repo := new(MockRepo)
	repo.On("GetUserByUsername", mock.Anything, "testuser").Return(freeUser(59, 3), nil).Once()
	repo.On("IncrementMessageCount", mock.Anything, "testuser", 60).Return(60, nil).Once()
	service := newTestService(repo, new(MockCache))

	decision, err := service.ConsumeTurn(context.Background(), "testuser")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.False(t, decision.Success)
	assert.Equal(t, 60, decision.TotalMessagesSent)

	repo.On("GetUserByUsername", mock.Anything, "testuser").Return(freeUser(60, 3), nil).Once()
	decision, err = service.ConsumeTurn(context.Background(), "testuser")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyLimitReached, decision.Reason)
	repo.AssertExpectations(t)
}

func TestConsumeTurn_UnlimitedPlan(t *testing.T) {
	repo := new(MockRepo)
	account := &models.User{UUID: "uid-1", Username: "vipuser", PlanID: "vip"}
	repo.On("GetUserByUsername", mock.Anything, "vipuser").Return(account, nil)
	service := newTestService(repo, new(MockCache))

	for i := 0; i < 1000; i++ {
		decision, err := service.ConsumeTurn(context.Background(), "vipuser")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.True(t, decision.Success)
		assert.Equal(t, 0, decision.TotalMessagesSent)
		assert.Equal(t, 0, decision.RemainingCredits)
		assert.Equal(t, "vip", decision.PlanID)
	}
	repo.AssertNotCalled(t, "IncrementMessageCount", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumeTurn_MissingAccountFallsBackToFree(t *testing.T) {
	repo := new(MockRepo)
	repo.On("GetUserByUsername", mock.Anything, "ghost").Return(nil, repository.ErrUserNotFound)
	service := newTestService(repo, new(MockCache))

	decision, err := service.ConsumeTurn(context.Background(), "ghost")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Success)
	assert.Equal(t, "free", decision.PlanID)
	assert.Equal(t, 1, decision.TotalMessagesSent)
	repo.AssertNotCalled(t, "IncrementMessageCount", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumeTurn_UnknownPlanFallsBackToFree(t *testing.T) {
	repo := new(MockRepo)
	account := &models.User{UUID: "uid-1", Username: "testuser", PlanID: "legacy-gold", TotalMessagesSent: 5}
	repo.On("GetUserByUsername", mock.Anything, "testuser").Return(account, nil)
	repo.On("IncrementMessageCount", mock.Anything, "testuser", 60).Return(6, nil)
	service := newTestService(repo, new(MockCache))

	decision, err := service.ConsumeTurn(context.Background(), "testuser")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "free", decision.PlanID)
}

func TestConsumeTurn_LostRaceOnIncrement(t *testing.T) {
	repo := new(MockRepo)
	repo.On("GetUserByUsername", mock.Anything, "testuser").Return(freeUser(59, 3), nil)
	repo.On("IncrementMessageCount", mock.Anything, "testuser", 60).
		Return(0, repository.ErrMessageLimitReached)
	service := newTestService(repo, new(MockCache))

	decision, err := service.ConsumeTurn(context.Background(), "testuser")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyLimitReached, decision.Reason)
	assert.Equal(t, 60, decision.TotalMessagesSent)
}

func TestReleaseTurn(t *testing.T) {
	t.Run("конечный план возвращает единицу счётчика", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("GetUserByUsername", mock.Anything, "testuser").Return(freeUser(10, 3), nil)
		repo.On("DecrementMessageCount", mock.Anything, "testuser").Return(nil)
		service := newTestService(repo, new(MockCache))

		require.NoError(t, service.ReleaseTurn(context.Background(), "testuser"))
		repo.AssertExpectations(t)
	})

	t.Run("безлимитный план не трогает хранилище", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("GetUserByUsername", mock.Anything, "vipuser").
			Return(&models.User{UUID: "uid-1", Username: "vipuser", PlanID: "vip"}, nil)
		service := newTestService(repo, new(MockCache))

		require.NoError(t, service.ReleaseTurn(context.Background(), "vipuser"))
		repo.AssertNotCalled(t, "DecrementMessageCount", mock.Anything, mock.Anything)
	})
}

func TestDeductCredit(t *testing.T) {
	t.Run("успешное списание", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("GetUserByUsername", mock.Anything, "testuser").Return(freeUser(0, 3), nil)
		repo.On("DeductCredit", mock.Anything, "testuser").Return(2, nil)
		service := newTestService(repo, new(MockCache))

		remaining, err := service.DeductCredit(context.Background(), "testuser")
		require.NoError(t, err)
		assert.Equal(t, 2, remaining)
	})

	t.Run("пустой баланс", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("GetUserByUsername", mock.Anything, "testuser").Return(freeUser(0, 0), nil)
		repo.On("DeductCredit", mock.Anything, "testuser").
			Return(0, repository.ErrInsufficientCredits)
		service := newTestService(repo, new(MockCache))

		_, err := service.DeductCredit(context.Background(), "testuser")
		assert.ErrorIs(t, err, ErrInsufficientCredits)
	})

	t.Run("безлимитный план: no-op с нулевым остатком", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("GetUserByUsername", mock.Anything, "vipuser").
			Return(&models.User{UUID: "uid-1", Username: "vipuser", PlanID: "vip"}, nil)
		service := newTestService(repo, new(MockCache))

		remaining, err := service.DeductCredit(context.Background(), "vipuser")
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
		repo.AssertNotCalled(t, "DeductCredit", mock.Anything, mock.Anything)
	})
}

func TestAuthorize(t *testing.T) {
	free, _ := catalog.PlanByID("free")
	premium, _ := catalog.PlanByID("premium")

	tests := []struct {
		name       string
		plan       catalog.Plan
		scenarioID string
		languageID string
		wantErr    error
	}{
		{name: "разрешённая пара", plan: free, scenarioID: "meeting-friend", languageID: "en"},
		{name: "сценарий не входит в план", plan: free, scenarioID: "job-interview", languageID: "en", wantErr: ErrScenarioNotInPlan},
		{name: "язык не входит в план", plan: free, scenarioID: "restaurant", languageID: "fr", wantErr: ErrLanguageNotInPlan},
		{name: "нет ни сценария, ни языка: сообщаем о сценарии", plan: free, scenarioID: "office", languageID: "fr", wantErr: ErrScenarioNotInPlan},
		{name: "premium открывает офис", plan: premium, scenarioID: "office", languageID: "fr"},
		{name: "неизвестный сценарий", plan: premium, scenarioID: "space-station", languageID: "en", wantErr: ErrScenarioNotInPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.plan, tt.scenarioID, tt.languageID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Authorize разрешает пару (сценарий, язык) тогда и только тогда, когда оба
// входят в план — проверяем на всём каталоге.
func TestAuthorize_MatchesPlanSets(t *testing.T) {
	scenarios := append(catalog.AllScenarioIDs(), "nonexistent-scenario")
	languages := append(append([]string{}, catalog.Languages...), "de")

	for _, plan := range catalog.Plans {
		for _, s := range scenarios {
			for _, l := range languages {
				err := Authorize(plan, s, l)
				if plan.HasScenario(s) && plan.HasLanguage(l) {
					assert.NoError(t, err, "plan=%s s=%s l=%s", plan.ID, s, l)
				} else {
					assert.Error(t, err, "plan=%s s=%s l=%s", plan.ID, s, l)
				}
			}
		}
	}
}

func TestUserPlan(t *testing.T) {
	t.Run("попадание в кеш не трогает хранилище", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		cache.On("Get", "userplan:testuser", mock.Anything).
			Run(func(args mock.Arguments) {
				*(args.Get(1).(*string)) = "premium"
			}).Return(true, nil)
		service := newTestService(repo, cache)

		plan, err := service.UserPlan(context.Background(), "testuser")
		require.NoError(t, err)
		assert.Equal(t, "premium", plan.ID)
		repo.AssertNotCalled(t, "GetUserByUsername", mock.Anything, mock.Anything)
	})

	t.Run("промах кеша читает хранилище и кеширует план", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		cache.On("Get", "userplan:testuser", mock.Anything).Return(false, nil)
		repo.On("GetUserByUsername", mock.Anything, "testuser").Return(freeUser(0, 3), nil)
		cache.On("Set", "userplan:testuser", "free", 10*time.Minute).Return(nil)
		service := newTestService(repo, cache)

		plan, err := service.UserPlan(context.Background(), "testuser")
		require.NoError(t, err)
		assert.Equal(t, "free", plan.ID)
		cache.AssertExpectations(t)
	})

	t.Run("отсутствующая запись деградирует до free", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		cache.On("Get", "userplan:ghost", mock.Anything).Return(false, nil)
		repo.On("GetUserByUsername", mock.Anything, "ghost").Return(nil, repository.ErrUserNotFound)
		cache.On("Set", "userplan:ghost", "free", 10*time.Minute).Return(nil)
		service := newTestService(repo, cache)

		plan, err := service.UserPlan(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Equal(t, "free", plan.ID)
	})
}

func TestApplyPurchase(t *testing.T) {
	t.Run("план с кредитами", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		repo.On("SetPlan", mock.Anything, "testuser", "premium").Return(nil)
		repo.On("SetCredits", mock.Anything, "testuser", 120).Return(nil)
		cache.On("Invalidate", "userplan:testuser").Return(nil)
		service := newTestService(repo, cache)

		require.NoError(t, service.ApplyPurchase(context.Background(), "testuser", "premium"))
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("безлимитный план обнуляет кредиты", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		repo.On("SetPlan", mock.Anything, "testuser", "vip").Return(nil)
		repo.On("SetCredits", mock.Anything, "testuser", 0).Return(nil)
		cache.On("Invalidate", "userplan:testuser").Return(nil)
		service := newTestService(repo, cache)

		require.NoError(t, service.ApplyPurchase(context.Background(), "testuser", "vip"))
		repo.AssertExpectations(t)
	})

	t.Run("неизвестный план", func(t *testing.T) {
		service := newTestService(new(MockRepo), new(MockCache))
		err := service.ApplyPurchase(context.Background(), "testuser", "platinum")
		assert.ErrorIs(t, err, ErrUnknownPlan)
	})
}

func TestApplyCreditPack(t *testing.T) {
	repo := new(MockRepo)
	repo.On("AddCredits", mock.Anything, "testuser", 20).Return(23, nil)
	service := newTestService(repo, new(MockCache))

	balance, err := service.ApplyCreditPack(context.Background(), "testuser", "starter-pack")
	require.NoError(t, err)
	assert.Equal(t, 23, balance)

	_, err = service.ApplyCreditPack(context.Background(), "testuser", "mega-pack")
	assert.Error(t, err)
}
