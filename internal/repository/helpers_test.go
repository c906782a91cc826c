package repository_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
)

var userSequence atomic.Int64

func createTestUser(t *testing.T, repo *repository.SQLUserRepository) models.User {
	t.Helper()
	sequence := userSequence.Add(1)
	user, err := repo.Create(context.Background(), models.User{
		Email: fmt.Sprintf("user%d@example.com", sequence),
		Name:  fmt.Sprintf("User %d", sequence),
		Role:  models.RoleMember,
	})
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}

func intPtr(value int) *int { return &value }

func floatPtr(value float64) *float64 { return &value }
