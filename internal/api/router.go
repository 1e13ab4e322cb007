package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ecosoraculo/oraculo/internal/identity"
	"github.com/ecosoraculo/oraculo/internal/middleware"
)

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
	IsDev          bool
	Visitors       identity.VisitorStore
}

// NewRouter mounts every handler behind the global middleware stack.
// Health and webhook routes skip the visitor identity middleware.
func NewRouter(cfg RouterConfig, health *HealthHandler, mp *MercadoPagoHandler, widgets *WidgetHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	health.RegisterHealth(r)
	mp.RegisterWebhook(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.Visitors, cfg.IsDev))
		mp.RegisterRoutes(r)
		widgets.RegisterRoutes(r)
	})

	return r
}
