package wire

import (
	"net/http"

	"account-service/internal/adaptor"
	"account-service/internal/data/repository"
	"account-service/internal/usecase"
	"account-service/pkg/metrics"
	"account-service/pkg/middleware"
	"account-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App holds the wired HTTP surface.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes on top of the repositories.
func Wiring(
	repo *repository.Repository,
	deps usecase.Dependencies,
	httpMetrics *metrics.HTTP,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	service := usecase.NewService(repo, deps, config, logger)
	handler := adaptor.NewHandler(service, config, logger)

	router := setupRouter(handler, repo, httpMetrics, config, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	repo *repository.Repository,
	httpMetrics *metrics.HTTP,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.AllowedOrigins))
	r.Use(middleware.Metrics(httpMetrics))

	wireAuth(r, handler.Auth, repo, logger)
	wireVerification(r, handler.Verification, repo, logger)
	wireUser(r, handler.User, repo, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
