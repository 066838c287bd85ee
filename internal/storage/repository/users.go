package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/PromaticSolutions/FluencyAi/internal/models"
)

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его ID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, username, password_hash, plan_id, credits,
			      total_messages_sent)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, user.PlanID, user.Credits,
		user.TotalMessagesSent).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, username, password_hash, plan_id, credits,
			      total_messages_sent, created_at
			  FROM users
			  WHERE username = $1`
	u := &models.User{}
	row := s.DB.QueryRowContext(ctx, query, username)
	if err := row.Scan(&u.UUID, &u.Email, &u.Username, &u.PasswordHash,
		&u.PlanID, &u.Credits, &u.TotalMessagesSent, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// IncrementMessageCount атомарно увеличивает счётчик сообщений на единицу,
// но только пока счётчик меньше лимита. Возвращает новое значение счётчика.
// Однострочный UPDATE с условием исключает гонку lost update при параллельных
// ходах одного пользователя: при достигнутом лимите строка не изменяется и
// возвращается ErrMessageLimitReached.
func (s *Storage) IncrementMessageCount(ctx context.Context, username string, limit int) (int, error) {
	const op = "storage.IncrementMessageCount"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newTotal int
	query := `UPDATE users
			  SET total_messages_sent = total_messages_sent + 1
			  WHERE username = $1 AND total_messages_sent < $2
			  RETURNING total_messages_sent;`
	if err := s.DB.QueryRowContext(ctx, query, username, limit).Scan(&newTotal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrMessageLimitReached)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newTotal, nil
}

// DecrementMessageCount возвращает зарезервированную единицу счётчика после
// неудачной генерации. Ниже нуля счётчик не опускается.
func (s *Storage) DecrementMessageCount(ctx context.Context, username string) error {
	const op = "storage.DecrementMessageCount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET total_messages_sent = total_messages_sent - 1
			  WHERE username = $1 AND total_messages_sent > 0;`
	if _, err := s.DB.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeductCredit атомарно списывает один кредит и возвращает остаток.
// При нулевом балансе строка не изменяется и возвращается ErrInsufficientCredits.
func (s *Storage) DeductCredit(ctx context.Context, username string) (int, error) {
	const op = "storage.DeductCredit"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var remaining int
	query := `UPDATE users
			  SET credits = credits - 1
			  WHERE username = $1 AND credits > 0
			  RETURNING credits;`
	if err := s.DB.QueryRowContext(ctx, query, username).Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrInsufficientCredits)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return remaining, nil
}

// SetCredits выставляет баланс кредитов пользователя.
func (s *Storage) SetCredits(ctx context.Context, username string, credits int) error {
	const op = "storage.SetCredits"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET credits = $2 WHERE username = $1;`, username, credits)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// AddCredits увеличивает баланс кредитов на amount и возвращает новый баланс.
func (s *Storage) AddCredits(ctx context.Context, username string, amount int) (int, error) {
	const op = "storage.AddCredits"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newBalance int
	query := `UPDATE users
			  SET credits = credits + $2
			  WHERE username = $1
			  RETURNING credits;`
	if err := s.DB.QueryRowContext(ctx, query, username, amount).Scan(&newBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newBalance, nil
}

// SetPlan переводит пользователя на указанный тарифный план.
func (s *Storage) SetPlan(ctx context.Context, username, planID string) error {
	const op = "storage.SetPlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET plan_id = $2 WHERE username = $1;`, username, planID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
