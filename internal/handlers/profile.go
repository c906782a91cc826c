package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/bensuskins/gymthon/internal/middleware"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
)

var (
	activityLevels = []models.ActivityLevel{
		models.ActivitySedentary, models.ActivityLight, models.ActivityModerate,
		models.ActivityActive, models.ActivityVeryActive,
	}
	knownGoals = []string{
		models.GoalWeightLoss, models.GoalMuscleGain, models.GoalMaintenance, models.GoalEndurance,
	}
)

type ProfileHandler struct {
	profileRepo repository.ProfileRepository
}

func NewProfileHandler(profileRepo repository.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profileRepo: profileRepo}
}

type profileRequest struct {
	Age           *int                 `json:"age"`
	WeightKg      *float64             `json:"weight_kg"`
	HeightCm      *float64             `json:"height_cm"`
	Gender        string               `json:"gender"`
	ActivityLevel models.ActivityLevel `json:"activity_level"`
	Goals         []string             `json:"goals"`
	Preferences   []string             `json:"preferences"`
	Restrictions  []string             `json:"restrictions"`
	Timezone      string               `json:"timezone"`
}

func (request profileRequest) validate() string {
	switch {
	case request.Age != nil && (*request.Age <= 0 || *request.Age > 120):
		return "age must be between 1 and 120"
	case request.WeightKg != nil && *request.WeightKg <= 0:
		return "weight_kg must be positive"
	case request.HeightCm != nil && *request.HeightCm <= 0:
		return "height_cm must be positive"
	case request.ActivityLevel != "" && !slices.Contains(activityLevels, request.ActivityLevel):
		return "unknown activity_level"
	}
	for _, goal := range request.Goals {
		if !slices.Contains(knownGoals, goal) {
			return "unknown goal " + goal
		}
	}
	if request.Timezone != "" {
		if _, err := time.LoadLocation(request.Timezone); err != nil {
			return "unknown timezone"
		}
	}
	return ""
}

func (handler *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	profile, err := handler.profileRepo.FindByUserID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusOK, models.UserProfile{
			UserID:             user.ID,
			Goals:              []string{},
			Preferences:        []string{},
			Restrictions:       []string{},
			SubscriptionStatus: models.SubscriptionNone,
		})
		return
	}
	if err != nil {
		writeServiceError(w, err, "loading profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update replaces the caller's biometric and preference fields. The
// subscription is only changed by admins.
func (handler *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var request profileRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if problem := request.validate(); problem != "" {
		writeError(w, http.StatusBadRequest, "invalid_request", problem)
		return
	}

	profile, err := handler.profileRepo.Upsert(ctx, models.UserProfile{
		UserID:        user.ID,
		Age:           request.Age,
		WeightKg:      request.WeightKg,
		HeightCm:      request.HeightCm,
		Gender:        request.Gender,
		ActivityLevel: request.ActivityLevel,
		Goals:         request.Goals,
		Preferences:   request.Preferences,
		Restrictions:  request.Restrictions,
		Timezone:      request.Timezone,
	})
	if err != nil {
		writeServiceError(w, err, "saving profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// userToday is the caller's current date in their profile timezone.
func userToday(ctx context.Context, profileRepo repository.ProfileRepository, userID string, location *time.Location) string {
	profile, _ := profileRepo.FindByUserID(ctx, userID)
	return services.Today(profile, location, time.Now())
}
