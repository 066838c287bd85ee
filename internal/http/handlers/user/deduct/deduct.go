// Package deduct реализует HTTP-обработчик списания одного кредита.
package deduct

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/PromaticSolutions/FluencyAi/internal/entitlement"
	"github.com/PromaticSolutions/FluencyAi/internal/http/middlewarectx"
	"github.com/PromaticSolutions/FluencyAi/internal/http/response"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/sl"
)

// msgInsufficientCredits — текст отказа при пустом балансе.
const msgInsufficientCredits = "Você não tem créditos suficientes. Compre um pacote para continuar."

// Service описывает интерфейс тарификации для списания кредитов.
type Service interface {
	DeductCredit(ctx context.Context, username string) (int, error)
}

// Handler обрабатывает HTTP-запросы списания кредита.
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
// @Summary Списание одного кредита
// @Description Атомарно списывает один кредит с баланса пользователя.
// @Tags User
// @Produce  json
// @Success 200 {object} response.Response "Остаток кредитов"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно кредитов"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /user/credits/deduct [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.deduct"

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

	remaining, err := h.entitlements.DeductCredit(r.Context(), username)
	if err != nil {
		if errors.Is(err, entitlement.ErrInsufficientCredits) {
			log.Warn("insufficient credits", slog.String("username", username))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(msgInsufficientCredits))
			return
		}
		log.Error("failed to deduct credit", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to deduct credit"))
		return
	}

	log.Info("credit deducted", slog.String("username", username), slog.Int("remaining", remaining))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"remaining_credits": remaining,
	}))
}
