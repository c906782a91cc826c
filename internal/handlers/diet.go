package handlers

import (
	"net/http"
	"time"

	"github.com/bensuskins/gymthon/internal/middleware"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
	"github.com/go-chi/chi/v5"
)

type DietHandler struct {
	dietService *services.DietService
	dietRepo    repository.DietPlanRepository
	profileRepo repository.ProfileRepository
	location    *time.Location
}

func NewDietHandler(
	dietService *services.DietService,
	dietRepo repository.DietPlanRepository,
	profileRepo repository.ProfileRepository,
	location *time.Location,
) *DietHandler {
	return &DietHandler{
		dietService: dietService,
		dietRepo:    dietRepo,
		profileRepo: profileRepo,
		location:    location,
	}
}

type generateDietRequest struct {
	Date                  string `json:"date"`
	PreviousProgressLogID string `json:"previous_progress_log_id"`
}

func (handler *DietHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var request generateDietRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if request.Date == "" {
		request.Date = userToday(ctx, handler.profileRepo, user.ID, handler.location)
	}
	if !validDate(request.Date) {
		writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	plan, err := handler.dietService.CreatePlan(ctx, services.DietPlanRequest{
		UserID:        user.ID,
		Date:          request.Date,
		PreviousLogID: request.PreviousProgressLogID,
		Source:        models.DietPlanSourceAI,
	})
	if err != nil {
		writeServiceError(w, err, "generating diet plan")
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (handler *DietHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	plan, err := handler.dietRepo.FindByUserAndDate(ctx, user.ID, date)
	if err != nil {
		writeServiceError(w, err, "loading diet plan")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Delete removes the plan for a date so it can be generated again.
func (handler *DietHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	if err := handler.dietRepo.Delete(ctx, user.ID, date); err != nil {
		writeServiceError(w, err, "deleting diet plan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
