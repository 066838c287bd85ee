// Package metrics регистрирует счётчики Prometheus для основных событий
// приложения: ходы диалога, отказы по тарифу и сбои генерации.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatTurns — число разрешённых ходов диалога.
	ChatTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluencyai_chat_turns_total",
		Help: "Total number of chat turns allowed by the metering engine.",
	})

	// EntitlementDenials — отказы по тарифу с меткой причины
	// (scenario_not_in_plan, language_not_in_plan, limit_reached, insufficient_credits).
	EntitlementDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluencyai_entitlement_denials_total",
		Help: "Total number of entitlement denials by reason.",
	}, []string{"reason"})

	// GenerationFailures — сбои внешнего сервиса генерации.
	GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluencyai_generation_failures_total",
		Help: "Total number of failed text generation calls.",
	})
)
