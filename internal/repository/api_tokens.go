package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bensuskins/gymthon/internal/database"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/google/uuid"
)

type APITokenRepository interface {
	Create(ctx context.Context, token models.APIToken) (models.APIToken, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (models.APIToken, error)
	FindByUserID(ctx context.Context, userID string) ([]models.APIToken, error)
	Delete(ctx context.Context, id string) error
}

type SQLAPITokenRepository struct {
	database *database.DB
}

func NewAPITokenRepository(db *database.DB) *SQLAPITokenRepository {
	return &SQLAPITokenRepository{database: db}
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func (repository *SQLAPITokenRepository) Create(ctx context.Context, token models.APIToken) (models.APIToken, error) {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	token.CreatedAt = time.Now().UTC()

	_, err := repository.database.ExecContext(ctx,
		repository.database.Rebind(`INSERT INTO api_tokens (id, name, token_hash, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		token.ID, token.Name, token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.APIToken{}, fmt.Errorf("creating api token: %w", ErrConflict)
		}
		return models.APIToken{}, fmt.Errorf("creating api token: %w", err)
	}
	return token, nil
}

func (repository *SQLAPITokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (models.APIToken, error) {
	var token models.APIToken
	err := repository.database.QueryRowContext(ctx,
		repository.database.Rebind(`SELECT id, name, token_hash, user_id, expires_at, created_at
		FROM api_tokens WHERE token_hash = ?`), tokenHash,
	).Scan(&token.ID, &token.Name, &token.TokenHash, &token.UserID, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		return models.APIToken{}, notFoundOr(err, "finding token by hash")
	}
	return token, nil
}

func (repository *SQLAPITokenRepository) FindByUserID(ctx context.Context, userID string) ([]models.APIToken, error) {
	rows, err := repository.database.QueryContext(ctx,
		repository.database.Rebind(`SELECT id, name, token_hash, user_id, expires_at, created_at
		FROM api_tokens WHERE user_id = ? ORDER BY created_at DESC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding tokens by user: %w", err)
	}
	defer rows.Close()

	var tokens []models.APIToken
	for rows.Next() {
		var token models.APIToken
		if err := rows.Scan(&token.ID, &token.Name, &token.TokenHash, &token.UserID, &token.ExpiresAt, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (repository *SQLAPITokenRepository) Delete(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx, repository.database.Rebind("DELETE FROM api_tokens WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
