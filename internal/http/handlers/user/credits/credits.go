// Package credits реализует HTTP-обработчик чтения баланса кредитов.
package credits

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/PromaticSolutions/FluencyAi/internal/http/middlewarectx"
	"github.com/PromaticSolutions/FluencyAi/internal/http/response"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/sl"
)

// Service описывает интерфейс тарификации для чтения счётчиков.
type Service interface {
	Credits(ctx context.Context, username string) (credits, totalMessagesSent int, err error)
}

// Handler обрабатывает HTTP-запросы чтения баланса.
type Handler struct {
	log          *slog.Logger
	entitlements Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, entitlements Service) *Handler {
	return &Handler{
		log:          log,
		entitlements: entitlements,
	}
}

// ServeHTTP godoc
// @Summary Баланс кредитов пользователя
// @Description Возвращает баланс кредитов и счётчик отправленных сообщений.
// @Tags User
// @Produce  json
// @Success 200 {object} response.Response "Баланс и счётчик"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /user/credits [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.credits"

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

	credits, totalMessagesSent, err := h.entitlements.Credits(r.Context(), username)
	if err != nil {
		log.Error("failed to read credits", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to read credits"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"credits":             credits,
		"total_messages_sent": totalMessagesSent,
	}))
}
