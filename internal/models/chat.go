package models

// ChatMessage — одна реплика диалога с ролевой меткой.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// DummyChatRequest используется для приёма данных из JSON-запроса на новый ход
// диалога, прежде чем передавать их в оркестратор.
type DummyChatRequest struct {
	Messages   []ChatMessage `json:"messages" validate:"required,min=1,dive"`  // История диалога
	ScenarioID string        `json:"scenario_id" validate:"required"`          // Идентификатор сценария
	Language   string        `json:"language" validate:"required,min=2,max=5"` // Код языка диалога
}

// ChatResult — ответ оркестратора: сгенерированный текст плюс поля решения
// системы тарификации.
type ChatResult struct {
	Message           string `json:"message"`
	RemainingCredits  int    `json:"remaining_credits"`
	TotalMessagesSent int    `json:"total_messages_sent"`
	PlanID            string `json:"plan_id"`
}

// PurchaseEvent — событие успешной покупки, публикуемое в очередь уведомлений.
type PurchaseEvent struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	PlanID   string `json:"plan_id"`
	PlanName string `json:"plan_name"`
	Credits  int    `json:"credits"`
}
