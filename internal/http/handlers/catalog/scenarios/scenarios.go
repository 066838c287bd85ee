// Package scenarios реализует HTTP-обработчик каталога сценариев и языков.
package scenarios

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/PromaticSolutions/FluencyAi/internal/catalog"
	"github.com/PromaticSolutions/FluencyAi/internal/http/response"
)

// Handler обрабатывает HTTP-запросы каталога сценариев.
type Handler struct {
	log *slog.Logger
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Каталог сценариев и языков
// @Description Возвращает описания сценариев и поддерживаемые языки.
// @Tags Catalog
// @Produce  json
// @Success 200 {object} response.Response "Сценарии и языки"
// @Router /catalog/scenarios [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"scenarios": catalog.ScenarioDescriptions,
		"languages": catalog.Languages,
	}))
}
