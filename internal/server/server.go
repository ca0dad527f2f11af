// Пакет server — HTTP-сервер Board Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/board-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/board-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/board-module/internal/config"
	"github.com/bigkaa/goartstore/board-module/internal/domain/rbac"
)

// Server — HTTP-сервер Board Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
// validator — проверка запросов по OpenAPI (может быть nil).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler *handlers.APIHandler,
	jwtAuth *middleware.JWTAuth,
	validator func(http.Handler) http.Handler,
) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, handler, jwtAuth, validator),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты Board Module.
func NewRouter(
	logger *slog.Logger,
	h *handlers.APIHandler,
	jwtAuth *middleware.JWTAuth,
	validator func(http.Handler) http.Handler,
) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth, "/health/", "/metrics"))
	}
	if validator != nil {
		router.Use(validator)
	}

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	moderator := middleware.RequireModerator()

	router.Route("/api/v1/pages/{pageId}", func(r chi.Router) {
		r.Use(middleware.RequireUser())

		r.Post("/articles", h.CreateArticle)
		r.Get("/articles", h.ListArticles)
		r.Get("/articles/promotion", h.ListPromotion)
		r.Get("/slots/quote", h.QuoteSlot)
		r.Get("/prices", h.GetPriceTable)
		r.With(moderator).Put("/prices", h.SetPriceOverrides)
		r.With(moderator).Get("/prices/overrides", h.ListPriceOverrides)
		r.With(moderator).Delete("/prices/{slot}", h.DeletePriceOverride)
	})

	router.Route("/api/v1/articles/{articleId}", func(r chi.Router) {
		// Подтверждение оплаты приходит от платёжной системы (SA со scope)
		// или от модератора, поэтому RequireUser к нему не применяется.
		r.With(middleware.RequireModeratorOrScope(rbac.ScopePaymentsConfirm)).
			Post("/payment-confirmed", h.ConfirmPayment)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser())

			r.Get("/", h.GetArticle)
			r.Patch("/", h.UpdateArticle)
			r.Delete("/", h.DeleteArticle)
			r.With(moderator).Post("/approve", h.ApproveArticle)
			r.With(moderator).Post("/reject", h.RejectArticle)
			r.With(moderator).Post("/reslot", h.ReslotArticle)
			r.With(moderator).Post("/score", h.AdjustScore)
		})
	})

	return router
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без JWT.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			jwtMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
