package tasks

import (
	"context"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/server/models"
)

// Repository stores tasks. Every method is scoped to the owning user id;
// rows of other users are invisible to it.
type Repository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	Get(ctx context.Context, id, userID string) (*models.Task, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.Task, error)
	ListIncompleteDueBefore(ctx context.Context, userID string, before time.Time) ([]*models.Task, error)
	ListIncompleteDueBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.Task, error)
	ListIncompleteDueFrom(ctx context.Context, userID string, from time.Time) ([]*models.Task, error)
	ListCompleted(ctx context.Context, userID string) ([]*models.Task, error)
	SetCompleted(ctx context.Context, id, userID string, completed bool) (*models.Task, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}
