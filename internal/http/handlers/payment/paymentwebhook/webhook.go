// Package paymentwebhook реализует HTTP-обработчик вебхуков Stripe.
//
// Обработчик читает сырое тело запроса, передаёт его вместе с заголовком
// Stripe-Signature сервису покупок и отвечает провайдеру кодом 200 только
// после успешного применения события.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/PromaticSolutions/FluencyAi/internal/http/response"
	"github.com/PromaticSolutions/FluencyAi/internal/lib/sl"
	"github.com/PromaticSolutions/FluencyAi/internal/services/payment"
)

// maxBodyBytes — предел размера тела вебхука.
const maxBodyBytes = 1 << 16

// Service описывает интерфейс сервиса покупок для обработки вебхуков.
type Service interface {
	ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

// Handler обрабатывает вебхуки Stripe.
type Handler struct {
	log            *slog.Logger
	paymentService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, paymentService Service) *Handler {
	return &Handler{
		log:            log,
		paymentService: paymentService,
	}
}

// ServeHTTP godoc
// @Summary Вебхук Stripe
// @Description Принимает события Stripe и применяет подтверждённые покупки.
// @Tags Payment
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Событие обработано"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или тело"
// @Failure 500 {object} response.ErrorResponse "Ошибка применения события"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.paymentService.ProcessWebhook(r.Context(), payload, signature); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			log.Error("invalid webhook signature", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
		log.Error("failed to process webhook", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process webhook"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"received": true,
	}))
}
