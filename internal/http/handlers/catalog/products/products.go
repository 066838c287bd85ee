// Package products реализует HTTP-обработчик каталога пакетов кредитов.
package products

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/PromaticSolutions/FluencyAi/internal/catalog"
	"github.com/PromaticSolutions/FluencyAi/internal/http/response"
)

// Handler обрабатывает HTTP-запросы каталога пакетов кредитов.
type Handler struct {
	log *slog.Logger
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Каталог пакетов кредитов
// @Description Возвращает разовые пакеты кредитов.
// @Tags Catalog
// @Produce  json
// @Success 200 {object} response.Response "Список пакетов"
// @Router /catalog/products [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"products": catalog.Products,
	}))
}
