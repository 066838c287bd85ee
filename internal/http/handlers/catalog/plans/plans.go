// Package plans реализует HTTP-обработчик каталога тарифных планов.
package plans

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/PromaticSolutions/FluencyAi/internal/catalog"
	"github.com/PromaticSolutions/FluencyAi/internal/http/response"
)

// Handler обрабатывает HTTP-запросы каталога планов.
type Handler struct {
	log *slog.Logger
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Каталог тарифных планов
// @Description Возвращает все тарифные планы с ценами, лимитами и доступом.
// @Tags Catalog
// @Produce  json
// @Success 200 {object} response.Response "Список планов"
// @Router /catalog/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plans": catalog.Plans,
	}))
}
