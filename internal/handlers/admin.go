package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
	"github.com/go-chi/chi/v5"
)

// JobScheduler is the part of the scheduler the admin endpoints drive.
type JobScheduler interface {
	Start() error
	Stop()
	Trigger(name services.JobName) error
	Status() []services.JobStatus
}

type AdminHandler struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	scheduler   JobScheduler
}

func NewAdminHandler(userRepo repository.UserRepository, profileRepo repository.ProfileRepository, scheduler JobScheduler) *AdminHandler {
	return &AdminHandler{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		scheduler:   scheduler,
	}
}

func (handler *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := handler.userRepo.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, err, "listing users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (handler *AdminHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	handler.setRole(w, r, models.RoleAdmin)
}

func (handler *AdminHandler) DemoteUser(w http.ResponseWriter, r *http.Request) {
	handler.setRole(w, r, models.RoleMember)
}

func (handler *AdminHandler) setRole(w http.ResponseWriter, r *http.Request, role models.Role) {
	ctx := r.Context()
	user, err := handler.userRepo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "loading user")
		return
	}

	if err := handler.userRepo.UpdateRole(ctx, user.ID, role); err != nil {
		writeServiceError(w, err, "updating user role")
		return
	}
	slog.Info("changed user role", "user_id", user.ID, "role", role)

	user.Role = role
	writeJSON(w, http.StatusOK, user)
}

type subscriptionRequest struct {
	Status models.SubscriptionStatus `json:"status"`
	EndsAt *time.Time                `json:"ends_at"`
}

var subscriptionStatuses = []models.SubscriptionStatus{
	models.SubscriptionNone, models.SubscriptionTrial, models.SubscriptionActive,
	models.SubscriptionExpired, models.SubscriptionCancelled,
}

func (handler *AdminHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := handler.userRepo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "loading user")
		return
	}

	var request subscriptionRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if !slices.Contains(subscriptionStatuses, request.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown subscription status")
		return
	}

	if err := handler.profileRepo.UpdateSubscription(ctx, user.ID, request.Status, request.EndsAt); err != nil {
		writeServiceError(w, err, "updating subscription")
		return
	}
	profile, err := handler.profileRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err, "loading profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (handler *AdminHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": handler.scheduler.Status()})
}

// TriggerJob starts a run in the background and answers immediately.
func (handler *AdminHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := services.JobName(chi.URLParam(r, "job"))
	if err := handler.scheduler.Trigger(name); err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownJob):
			writeError(w, http.StatusNotFound, "not_found", "unknown job "+string(name))
		case errors.Is(err, services.ErrJobRunning):
			writeError(w, http.StatusConflict, "conflict", string(name)+" is already running")
		default:
			writeServiceError(w, err, "triggering job")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job": string(name), "status": "triggered"})
}

func (handler *AdminHandler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := handler.scheduler.Start(); err != nil {
		writeServiceError(w, err, "starting scheduler")
		return
	}
	handler.SchedulerStatus(w, r)
}

func (handler *AdminHandler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	handler.scheduler.Stop()
	handler.SchedulerStatus(w, r)
}
