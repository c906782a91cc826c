package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bensuskins/gymthon/internal/completion"
	"github.com/bensuskins/gymthon/internal/middleware"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
	"github.com/go-chi/chi/v5"
)

type APIHandler struct {
	tokenRepo repository.APITokenRepository
}

func NewAPIHandler(tokenRepo repository.APITokenRepository) *APIHandler {
	return &APIHandler{tokenRepo: tokenRepo}
}

type createTokenRequest struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days"`
}

func (handler *APIHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	tokens, err := handler.tokenRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err, "listing tokens")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (handler *APIHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var request createTokenRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if request.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	rawToken := GenerateToken()
	token := models.APIToken{
		Name:      request.Name,
		TokenHash: repository.HashToken(rawToken),
		UserID:    user.ID,
	}
	if request.ExpiresInDays > 0 {
		expiresAt := time.Now().UTC().AddDate(0, 0, request.ExpiresInDays)
		token.ExpiresAt = &expiresAt
	}

	created, err := handler.tokenRepo.Create(ctx, token)
	if err != nil {
		writeServiceError(w, err, "creating token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID,
		"name":       created.Name,
		"token":      rawToken,
		"expires_at": created.ExpiresAt,
	})
}

// DeleteToken revokes one of the caller's own tokens.
func (handler *APIHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)
	id := chi.URLParam(r, "id")

	tokens, err := handler.tokenRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err, "listing tokens")
		return
	}
	owned := false
	for _, token := range tokens {
		if token.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, http.StatusNotFound, "not_found", "token not found")
		return
	}

	if err := handler.tokenRepo.Delete(ctx, id); err != nil {
		writeServiceError(w, err, "deleting token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateToken returns a random 64 character hex token.
func GenerateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, reason string, message string) {
	writeJSON(w, status, map[string]string{"error": reason, "message": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// writeServiceError maps pipeline and storage failures onto status codes.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	var incomplete *services.IncompleteProfileError
	var upstream *completion.UpstreamError
	var parseErr *services.ParseError
	var structureErr *services.InvalidStructureError

	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "incomplete_profile",
			"message": "Complete your profile before generating a plan",
			"missing": incomplete.Missing,
		})
	case errors.As(err, &upstream):
		slog.Warn(action, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "The AI service is unavailable, please try again later")
	case errors.As(err, &parseErr), errors.As(err, &structureErr):
		slog.Warn(action, "error", err)
		writeError(w, http.StatusBadGateway, "invalid_ai_response", "The AI service returned an unusable plan, please try again")
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	default:
		slog.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func validDate(value string) bool {
	_, err := time.Parse(models.DateLayout, value)
	return err == nil
}
