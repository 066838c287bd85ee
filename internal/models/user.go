// Package models содержит доменные структуры приложения: учётную запись
// пользователя с тарифным планом и счётчиками, а также модели чат-запросов.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
// Поля Credits и TotalMessagesSent имеют смысл только для планов с конечными
// лимитами; для безлимитных планов счётчики не ведутся.
type User struct {
	UUID              string    // Уникальный идентификатор пользователя
	Email             string    // Электронная почта
	Username          string    // Имя пользователя (уникальное)
	PasswordHash      string    // Хэш пароля пользователя
	PlanID            string    // Идентификатор тарифного плана, по умолчанию free
	Credits           int       // Баланс кредитов (неотрицательный)
	TotalMessagesSent int       // Суммарное число отправленных сообщений
	CreatedAt         time.Time // Дата регистрации
}
