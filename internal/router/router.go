package router

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pulseboardhq/analytics-backend/internal/handlers"
	"github.com/pulseboardhq/analytics-backend/internal/middleware"
)

func NewRouter(deps *handlers.Deps, mw *middleware.Middleware) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)
	r.Use(mw.OrgScope)

	wh := handlers.NewWidgetHandlers(deps)

	r.Mount("/widgets", wh.WidgetRoutes())
	return r
}
