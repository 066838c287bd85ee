// Package fluencyai предоставляет маршруты для основного приложения.
package fluencyai

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	chatservice "github.com/PromaticSolutions/FluencyAi/internal/chat"
	"github.com/PromaticSolutions/FluencyAi/internal/entitlement"
	cataloghandlersplans "github.com/PromaticSolutions/FluencyAi/internal/http/handlers/catalog/plans"
	cataloghandlersproducts "github.com/PromaticSolutions/FluencyAi/internal/http/handlers/catalog/products"
	cataloghandlersscenarios "github.com/PromaticSolutions/FluencyAi/internal/http/handlers/catalog/scenarios"
	"github.com/PromaticSolutions/FluencyAi/internal/http/handlers/auth/login"
	"github.com/PromaticSolutions/FluencyAi/internal/http/handlers/auth/register"
	chathandler "github.com/PromaticSolutions/FluencyAi/internal/http/handlers/chat"
	"github.com/PromaticSolutions/FluencyAi/internal/http/handlers/health"
	"github.com/PromaticSolutions/FluencyAi/internal/http/handlers/payment/paymentcreate"
	"github.com/PromaticSolutions/FluencyAi/internal/http/handlers/payment/paymentwebhook"
	"github.com/PromaticSolutions/FluencyAi/internal/http/handlers/user/credits"
	"github.com/PromaticSolutions/FluencyAi/internal/http/handlers/user/deduct"
	"github.com/PromaticSolutions/FluencyAi/internal/http/handlers/user/plan"
	"github.com/PromaticSolutions/FluencyAi/internal/http/middlewarectx"
	authservice "github.com/PromaticSolutions/FluencyAi/internal/services/auth"
	paymentservice "github.com/PromaticSolutions/FluencyAi/internal/services/payment"
	"github.com/PromaticSolutions/FluencyAi/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *repository.Storage,
	authService *authservice.AuthService, entitlements *entitlement.Service,
	chatService *chatservice.Service, paymentService *paymentservice.PaymentService) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
		r.Get("/health", health.New(logger, db).ServeHTTP)
		r.Get("/catalog/plans", cataloghandlersplans.New(logger).ServeHTTP)
		r.Get("/catalog/scenarios", cataloghandlersscenarios.New(logger).ServeHTTP)
		r.Get("/catalog/products", cataloghandlersproducts.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/chat", chathandler.New(logger, chatService).ServeHTTP)
			r.Get("/user/plan", plan.New(logger, entitlements).ServeHTTP)
			r.Get("/user/credits", credits.New(logger, entitlements).ServeHTTP)
			r.Post("/user/credits/deduct", deduct.New(logger, entitlements).ServeHTTP)
			r.Post("/payment", paymentcreate.New(logger, paymentService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, paymentService).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
