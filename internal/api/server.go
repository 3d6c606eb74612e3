package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/spaceai-sentinel/internal/infra/auth"
	"go.uber.org/zap"
)

// Server — HTTP-поверхность sentinel: ingest метрик от коллекторов и
// операторский query/control API поверх конвейера детекции.
type Server struct {
	router *chi.Mux
	logger *zap.Logger

	// Интерфейс для проверки токенов (RS256)
	authValidator auth.TokenValidator

	handler     *Handler
	authHandler *AuthHandler
}

func NewServer(logger *zap.Logger, validator auth.TokenValidator, h *Handler, ah *AuthHandler) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger.Named("sentinel-api"),
		authValidator: validator,
		handler:       h,
		authHandler:   ah,
	}

	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	// --- 2. Публичные роуты ---
	r.Group(func(r chi.Router) {
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. Защищенный периметр (требует RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Ingest: один сэмпл поведения на агента за тик
		r.Post("/v1/ingest", s.handler.Ingest)

		// Наблюдение за агентами и реагирование
		r.Route("/v1/agents", func(r chi.Router) {
			r.Get("/", s.handler.ListAgents)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/profile", s.handler.GetProfile)
				r.Get("/quarantine", s.handler.GetQuarantine)
				r.Post("/quarantine", s.handler.Quarantine) // Ручной карантин оператором
				r.Post("/release", s.handler.Release)
			})
		})

		// Истории и аналитика
		r.Get("/v1/threats", s.handler.ThreatHistory)      // ?agent_id=
		r.Get("/v1/responses", s.handler.ResponseHistory)  // ?agent_id=
		r.Get("/v1/incidents", s.handler.Incidents)        // Очередь эскалаций (HITL)
		r.Get("/v1/quarantine", s.handler.ListQuarantined) // Все активные карантины

		// Предиктивная разведка
		r.Get("/v1/predictions", s.handler.Predictions) // ?window=1h
		r.Get("/v1/trends", s.handler.Trends)
	})
}
