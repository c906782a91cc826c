package handlers

import (
	"net/http"
	"time"

	"github.com/bensuskins/gymthon/internal/middleware"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
)

const defaultProgressDays = 30

type ProgressHandler struct {
	logRepo     repository.ProgressLogRepository
	profileRepo repository.ProfileRepository
	location    *time.Location
}

func NewProgressHandler(logRepo repository.ProgressLogRepository, profileRepo repository.ProfileRepository, location *time.Location) *ProgressHandler {
	return &ProgressHandler{logRepo: logRepo, profileRepo: profileRepo, location: location}
}

type progressRequest struct {
	Date     string              `json:"date"`
	Meals    []models.LoggedMeal `json:"meals"`
	WeightKg *float64            `json:"weight_kg"`
	Notes    string              `json:"notes"`
}

func (handler *ProgressHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var request progressRequest
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
	for _, meal := range request.Meals {
		if meal.Calories < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "meal calories cannot be negative")
			return
		}
	}

	log, err := handler.logRepo.Create(ctx, models.ProgressLog{
		UserID:   user.ID,
		Date:     request.Date,
		Meals:    request.Meals,
		WeightKg: request.WeightKg,
		Notes:    request.Notes,
	})
	if err != nil {
		writeServiceError(w, err, "creating progress log")
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

// List returns the caller's logs between from and to inclusive, defaulting
// to the last thirty days.
func (handler *ProgressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	to := r.URL.Query().Get("to")
	if to == "" {
		to = userToday(ctx, handler.profileRepo, user.ID, handler.location)
	}
	from := r.URL.Query().Get("from")
	if from == "" && validDate(to) {
		end, _ := time.Parse(models.DateLayout, to)
		from = end.AddDate(0, 0, -(defaultProgressDays - 1)).Format(models.DateLayout)
	}
	if !validDate(from) || !validDate(to) || from > to {
		writeError(w, http.StatusBadRequest, "invalid_request", "from and to must be YYYY-MM-DD with from <= to")
		return
	}

	logs, err := handler.logRepo.FindByUserAndRange(ctx, user.ID, from, to)
	if err != nil {
		writeServiceError(w, err, "listing progress logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
