package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bensuskins/gymthon/internal/config"
	"github.com/bensuskins/gymthon/internal/database"
	"github.com/bensuskins/gymthon/internal/handlers"
	"github.com/bensuskins/gymthon/internal/middleware"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	router    *chi.Mux
	config    config.Config
	scheduler *services.Scheduler
}

func New(database *database.DB, cfg config.Config, completer services.Completer) (*Server, error) {
	userRepo := repository.NewUserRepository(database)
	tokenRepo := repository.NewAPITokenRepository(database)
	profileRepo := repository.NewProfileRepository(database)
	logRepo := repository.NewProgressLogRepository(database)
	dietRepo := repository.NewDietPlanRepository(database)
	workoutRepo := repository.NewWorkoutPlanRepository(database)

	dietService := services.NewDietService(profileRepo, logRepo, dietRepo, completer)
	workoutService := services.NewWorkoutService(profileRepo, workoutRepo, completer)

	location := cfg.SchedulerLocation
	if location == nil {
		location = time.UTC
	}
	scheduler, err := services.NewScheduler(services.SchedulerConfig{
		Location:               location,
		SubscriptionSchedule:   cfg.SubscriptionSchedule,
		DailyDietSchedule:      cfg.DailyDietSchedule,
		WorkoutRenewalSchedule: cfg.WorkoutRenewalSchedule,
	}, profileRepo, logRepo, dietRepo, workoutRepo, dietService, workoutService)
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	generationLimit, generationWindow := orDefaultLimit(cfg.GenerationRateLimit, cfg.GenerationRateWindow, 10, time.Minute)
	aiLimit, aiWindow := orDefaultLimit(cfg.AIRateLimit, cfg.AIRateWindow, 20, time.Hour)

	apiHandler := handlers.NewAPIHandler(tokenRepo)
	profileHandler := handlers.NewProfileHandler(profileRepo)
	progressHandler := handlers.NewProgressHandler(logRepo, profileRepo, location)
	dietHandler := handlers.NewDietHandler(dietService, dietRepo, profileRepo, location)
	workoutHandler := handlers.NewWorkoutHandler(workoutService, workoutRepo, profileRepo, location)
	adminHandler := handlers.NewAdminHandler(userRepo, profileRepo, scheduler)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}).Handler)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokenRepo, userRepo))

		r.Get("/api/profile", profileHandler.Get)
		r.Put("/api/profile", profileHandler.Update)

		r.Post("/api/progress", progressHandler.Create)
		r.Get("/api/progress", progressHandler.List)

		r.Get("/api/tokens", apiHandler.ListTokens)
		r.Post("/api/tokens", apiHandler.CreateToken)
		r.Delete("/api/tokens/{id}", apiHandler.DeleteToken)

		r.Get("/api/diet/{date}", dietHandler.Get)
		r.Delete("/api/diet/{date}", dietHandler.Delete)

		r.Get("/api/workouts", workoutHandler.List)
		r.Get("/api/workouts/active", workoutHandler.Active)
		r.Post("/api/workouts/{id}/cancel", workoutHandler.Cancel)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSubscription(profileRepo, nil))
			r.Use(middleware.RateLimit("generation", generationLimit, generationWindow))
			r.Use(middleware.RateLimit("ai", aiLimit, aiWindow))

			r.Post("/api/diet/generate", dietHandler.Generate)
			r.Post("/api/workouts/generate", workoutHandler.Generate)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/api/admin/users", adminHandler.Users)
			r.Post("/api/admin/users/{id}/promote", adminHandler.PromoteUser)
			r.Post("/api/admin/users/{id}/demote", adminHandler.DemoteUser)
			r.Put("/api/admin/users/{id}/subscription", adminHandler.UpdateSubscription)

			r.Get("/api/admin/scheduler/status", adminHandler.SchedulerStatus)
			r.Post("/api/admin/scheduler/start", adminHandler.StartScheduler)
			r.Post("/api/admin/scheduler/stop", adminHandler.StopScheduler)
			r.Post("/api/admin/scheduler/{job}/trigger", adminHandler.TriggerJob)
		})
	})

	server := &Server{
		router:    router,
		config:    cfg,
		scheduler: scheduler,
	}

	return server, nil
}

func orDefaultLimit(limit int, window time.Duration, defaultLimit int, defaultWindow time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if window <= 0 {
		window = defaultWindow
	}
	return limit, window
}

func (server *Server) Handler() http.Handler {
	return server.router
}

func (server *Server) Scheduler() *services.Scheduler {
	return server.scheduler
}

// Start serves until ctx is cancelled, then drains requests and waits for
// in-flight sweeps before returning.
func (server *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              ":" + server.config.Port,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("starting server", "address", httpServer.Addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		server.scheduler.Stop()
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	server.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutting down server: %w", err)
	}
	server.scheduler.Wait()
	return nil
}
