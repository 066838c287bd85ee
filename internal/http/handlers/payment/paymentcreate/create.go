// Package paymentcreate реализует HTTP-обработчик создания сессии оплаты.
package paymentcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/PromaticSolutions/FluencyAi/internal/http/middlewarectx"
	"github.com/PromaticSolutions/FluencyAi/internal/http/response"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/sl"
	"github.com/PromaticSolutions/FluencyAi/internal/services/payment"
)

// Request — структура входных данных для создания сессии оплаты.
type Request struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// Service описывает интерфейс сервиса покупок.
type Service interface {
	CreateCheckout(ctx context.Context, username, planID string) (string, error)
}

// Handler обрабатывает HTTP-запросы создания сессии оплаты.
type Handler struct {
	log            *slog.Logger
	paymentService Service
	validate       *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, paymentService Service) *Handler {
	return &Handler{
		log:            log,
		paymentService: paymentService,
		validate:       validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создание сессии оплаты
// @Description Создаёт сессию Stripe Checkout для покупки плана и возвращает URL оплаты.
// @Tags Payment
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор плана"
// @Success 200 {object} response.Response "URL сессии оплаты"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или план не продаётся"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка платёжного провайдера"
// @Security BearerAuth
// @Router /payment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"

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

	var req Request
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

	checkoutURL, err := h.paymentService.CreateCheckout(r.Context(), username, req.PlanID)
	if err != nil {
		if errors.Is(err, payment.ErrPlanNotPurchasable) {
			log.Warn("plan is not purchasable", slog.String("plan", req.PlanID))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("plan is not purchasable"))
			return
		}
		log.Error("failed to create checkout session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to create checkout session"))
		return
	}

	log.Info("checkout session created", slog.String("username", username), slog.String("plan", req.PlanID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"checkout_url": checkoutURL,
	}))
}
