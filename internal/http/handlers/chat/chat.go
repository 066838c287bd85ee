// Package chat реализует HTTP-обработчик хода диалога с ассистентом.
//
// Обработчик валидирует историю сообщений, сценарий и язык, делегирует ход
// оркестратору и переводит ошибки тарификации в ответы 403 с текстами для
// пользователя.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	chatservice "github.com/PromaticSolutions/FluencyAi/internal/chat"
	"github.com/PromaticSolutions/FluencyAi/internal/entitlement"
	"github.com/PromaticSolutions/FluencyAi/internal/http/middlewarectx"
	"github.com/PromaticSolutions/FluencyAi/internal/http/response"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/sl"
	"github.com/PromaticSolutions/FluencyAi/internal/models"
)

// Тексты отказов, показываемые пользователю.
const (
	msgScenarioNotInPlan = "Esse cenário não está disponível no seu plano. Faça upgrade para desbloquear."
	msgLanguageNotInPlan = "No plano gratuito você só pode usar inglês."
	msgLimitReached      = "Você atingiu o limite do seu plano. Faça upgrade para continuar."
	msgGenerationFailed  = "Failed to generate response"
)

// Service описывает оркестратор хода диалога.
type Service interface {
	Turn(ctx context.Context, username string, req models.DummyChatRequest) (models.ChatResult, error)
}

// Handler обрабатывает HTTP-запросы хода диалога.
type Handler struct {
	log         *slog.Logger
	chatService Service
	validate    *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, chatService Service) *Handler {
	return &Handler{
		log:         log,
		chatService: chatService,
		validate:    validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Ход диалога с ассистентом
// @Description Выполняет один ход диалога в выбранном сценарии и языке.
// @Tags Chat
// @Accept  json
// @Produce  json
// @Param request body models.DummyChatRequest true "История сообщений, сценарий и язык"
// @Success 200 {object} response.Response "Ответ ассистента и состояние счётчиков"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 403 {object} response.ErrorResponse "Отказ по тарифу"
// @Failure 500 {object} response.ErrorResponse "Сбой генерации"
// @Security BearerAuth
// @Router /chat [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.DummyChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	result, err := h.chatService.Turn(r.Context(), username, req)
	if err != nil {
		h.renderTurnError(w, r, log, err)
		return
	}

	log.Info("chat turn completed",
		slog.String("username", username),
		slog.String("scenario", req.ScenarioID),
		slog.Int("total_messages_sent", result.TotalMessagesSent))
	render.JSON(w, r, response.StatusOKWithData(result))
}

func (h *Handler) renderTurnError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, entitlement.ErrScenarioNotInPlan):
		log.Warn("scenario not in plan", sl.Err(err))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error(msgScenarioNotInPlan))
	case errors.Is(err, entitlement.ErrLanguageNotInPlan):
		log.Warn("language not in plan", sl.Err(err))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error(msgLanguageNotInPlan))
	case errors.Is(err, chatservice.ErrLimitReached):
		log.Warn("message limit reached", sl.Err(err))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error(msgLimitReached))
	default:
		log.Error("chat turn failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(msgGenerationFailed))
	}
}
