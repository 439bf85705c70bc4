package server

import (
	"net/http"

	"github.com/xela07ax/dmlguard/internal/console/handler"
	"github.com/xela07ax/dmlguard/internal/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ConsoleServer — Control Plane: управление правилами доступа, блок-листом
// субъектов и чтение decision trail
type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	ruleHandler      *handler.RuleHandler      // /v1/rules
	principalHandler *handler.PrincipalHandler // /v1/principals
	auditHandler     *handler.AuditHandler     // /v1/audit
}

// NewConsoleServer инициализирует сервер админки со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	ruleH *handler.RuleHandler,
	principalH *handler.PrincipalHandler,
	auditH *handler.AuditHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:           chi.NewRouter(),
		logger:           logger.Named("console-api"),
		cfg:              cfg,
		ruleHandler:      ruleH,
		principalHandler: principalH,
		auditHandler:     auditH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// Инфраструктурные Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Healthcheck для мониторинга
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Управление правилами доступа к полям
	r.Route("/v1/rules", func(r chi.Router) {
		r.Get("/", s.ruleHandler.List)    // Все правила
		r.Post("/", s.ruleHandler.Create) // Создание (включая Wildcard '*')
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.ruleHandler.Get)
			r.Put("/", s.ruleHandler.Update)    // Редактирование флагов доступа
			r.Delete("/", s.ruleHandler.Delete) // Удаление
		})
	})

	// Управление блок-листом субъектов (Kill-switch)
	r.Route("/v1/principals", func(r chi.Router) {
		r.Get("/blocked", s.principalHandler.ListBlocked)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/block", s.principalHandler.Block)     // Мгновенная блокировка
			r.Post("/unblock", s.principalHandler.Unblock) // Разблокировка
		})
	})

	// Decision trail (Observability)
	r.Get("/v1/audit", s.auditHandler.GetLogs)
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
