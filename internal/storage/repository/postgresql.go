// Package repository реализует хранилище данных на основе PostgreSQL
// для учётных записей пользователей: регистрация, чтение, атомарные
// обновления счётчика сообщений и баланса кредитов, смена тарифного плана.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки уровня хранилища.
var (
	// ErrUserNotFound возвращается, если строка пользователя отсутствует.
	ErrUserNotFound = errors.New("user not found")
	// ErrMessageLimitReached возвращается защищённым инкрементом, когда
	// счётчик сообщений уже достиг лимита плана.
	ErrMessageLimitReached = errors.New("message limit reached")
	// ErrInsufficientCredits возвращается при списании с нулевого баланса.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с учётными записями пользователей.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'users'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table users missing or query error: %w", err)
	}
	return nil
}
