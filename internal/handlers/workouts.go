package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bensuskins/gymthon/internal/middleware"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
	"github.com/go-chi/chi/v5"
)

type WorkoutHandler struct {
	workoutService *services.WorkoutService
	workoutRepo    repository.WorkoutPlanRepository
	profileRepo    repository.ProfileRepository
	location       *time.Location
}

func NewWorkoutHandler(
	workoutService *services.WorkoutService,
	workoutRepo repository.WorkoutPlanRepository,
	profileRepo repository.ProfileRepository,
	location *time.Location,
) *WorkoutHandler {
	return &WorkoutHandler{
		workoutService: workoutService,
		workoutRepo:    workoutRepo,
		profileRepo:    profileRepo,
		location:       location,
	}
}

type generateWorkoutRequest struct {
	StartDate       string `json:"start_date"`
	DurationWeeks   int    `json:"duration_weeks"`
	DaysPerWeek     int    `json:"days_per_week"`
	Goal            string `json:"goal"`
	ExperienceLevel string `json:"experience_level"`
	Preferences     string `json:"preferences"`
}

func (handler *WorkoutHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var request generateWorkoutRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if request.StartDate == "" {
		request.StartDate = userToday(ctx, handler.profileRepo, user.ID, handler.location)
	}
	if !validDate(request.StartDate) {
		writeError(w, http.StatusBadRequest, "invalid_request", "start_date must be YYYY-MM-DD")
		return
	}
	if request.DurationWeeks < 0 || request.DaysPerWeek < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "duration_weeks and days_per_week cannot be negative")
		return
	}
	if request.DurationWeeks > services.MaxCycleWeeks {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("duration_weeks cannot exceed %d", services.MaxCycleWeeks))
		return
	}

	plan, err := handler.workoutService.CreateCycle(ctx, user.ID, request.StartDate, request.DurationWeeks, services.WorkoutOptions{
		DaysPerWeek:     request.DaysPerWeek,
		GoalOverride:    request.Goal,
		ExperienceLevel: request.ExperienceLevel,
		Preferences:     request.Preferences,
	})
	if err != nil {
		writeServiceError(w, err, "generating workout cycle")
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (handler *WorkoutHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	plans, err := handler.workoutRepo.FindByUser(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err, "listing workout plans")
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// Active returns the cycle covering the caller's today.
func (handler *WorkoutHandler) Active(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)
	today := userToday(ctx, handler.profileRepo, user.ID, handler.location)

	plans, err := handler.workoutRepo.FindOverlapping(ctx, user.ID, today, today)
	if err != nil {
		writeServiceError(w, err, "loading active workout plan")
		return
	}
	if len(plans) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no active workout plan")
		return
	}
	writeJSON(w, http.StatusOK, plans[0])
}

func (handler *WorkoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	plan, err := handler.workoutRepo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "loading workout plan")
		return
	}
	if plan.UserID != user.ID {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}

	err = handler.workoutRepo.UpdateStatus(ctx, plan.ID, models.WorkoutStatusActive, models.WorkoutStatusCancelled)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusConflict, "conflict", "only active plans can be cancelled")
		return
	}
	if err != nil {
		writeServiceError(w, err, "cancelling workout plan")
		return
	}

	plan.Status = models.WorkoutStatusCancelled
	writeJSON(w, http.StatusOK, plan)
}
