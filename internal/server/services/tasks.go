package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Grouped is a user's task list split into buckets against one instant.
type Grouped struct {
	Overdue   []*models.Task
	DueToday  []*models.Task
	DueLater  []*models.Task
	Completed []*models.Task
}

// TaskService manages tasks on behalf of their owners. Every method takes
// the caller's user id and never touches another user's tasks.
type TaskService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	location    *time.Location
	clock       func() time.Time
}

func NewTaskService(db *sql.DB, m repomanager.RepositoryManager, loc *time.Location) *TaskService {
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{db: db, repomanager: m, location: loc, clock: time.Now}
}

func (s *TaskService) now() time.Time {
	return s.clock().In(s.location)
}

// Create validates title and dueDate and stores a new incomplete task.
func (s *TaskService) Create(ctx context.Context, ownerID, title, dueDate string) (*models.Task, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) < models.MinTitleLength {
		return nil, common.NewValidationError("title",
			fmt.Sprintf("title should be at least %d characters", models.MinTitleLength))
	}

	due, err := s.parseDueDate(dueDate)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Title:     title,
		DueDate:   due,
		Completed: false,
	}

	t, err := s.repomanager.Tasks(s.db).Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("error creating task: %w", err)
	}
	return t, nil
}

func (s *TaskService) parseDueDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, common.NewValidationError("dueDate", "please select a due date")
	}
	if t, err := time.ParseInLocation(dateLayout, v, s.location); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, common.NewValidationError("dueDate", "due date must be YYYY-MM-DD or RFC 3339")
}

// ListOverdue returns incomplete tasks due before the start of today.
func (s *TaskService) ListOverdue(ctx context.Context, ownerID string) ([]*models.Task, error) {
	day := models.DayWindowAt(s.now())
	return s.repomanager.Tasks(s.db).ListIncompleteDueBefore(ctx, ownerID, day.Start)
}

// ListDueToday returns incomplete tasks due within today.
func (s *TaskService) ListDueToday(ctx context.Context, ownerID string) ([]*models.Task, error) {
	day := models.DayWindowAt(s.now())
	return s.repomanager.Tasks(s.db).ListIncompleteDueBetween(ctx, ownerID, day.Start, day.End)
}

// ListDueLater returns incomplete tasks due from tomorrow on.
func (s *TaskService) ListDueLater(ctx context.Context, ownerID string) ([]*models.Task, error) {
	day := models.DayWindowAt(s.now())
	return s.repomanager.Tasks(s.db).ListIncompleteDueFrom(ctx, ownerID, day.End)
}

func (s *TaskService) ListCompleted(ctx context.Context, ownerID string) ([]*models.Task, error) {
	return s.repomanager.Tasks(s.db).ListCompleted(ctx, ownerID)
}

// ListGrouped loads all of the owner's tasks once and buckets them against a
// single now, so a task cannot show up in two lists or in none.
func (s *TaskService) ListGrouped(ctx context.Context, ownerID string) (*Grouped, error) {
	all, err := s.repomanager.Tasks(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	g := &Grouped{
		Overdue:   []*models.Task{},
		DueToday:  []*models.Task{},
		DueLater:  []*models.Task{},
		Completed: []*models.Task{},
	}
	for _, t := range all {
		switch t.BucketAt(now) {
		case models.BucketOverdue:
			g.Overdue = append(g.Overdue, t)
		case models.BucketDueToday:
			g.DueToday = append(g.DueToday, t)
		case models.BucketDueLater:
			g.DueLater = append(g.DueLater, t)
		case models.BucketCompleted:
			g.Completed = append(g.Completed, t)
		}
	}
	return g, nil
}

// Get returns one task owned by ownerID.
func (s *TaskService) Get(ctx context.Context, taskID, ownerID string) (*models.Task, error) {
	if !validID(taskID) {
		return nil, common.ErrNotFound
	}
	return s.repomanager.Tasks(s.db).Get(ctx, taskID, ownerID)
}

// SetCompleted sets the completion flag. Setting the current value again is
// not an error.
func (s *TaskService) SetCompleted(ctx context.Context, taskID, ownerID string, completed bool) (*models.Task, error) {
	if !validID(taskID) {
		return nil, common.ErrNotFound
	}
	return s.repomanager.Tasks(s.db).SetCompleted(ctx, taskID, ownerID, completed)
}

// Delete reports whether a task owned by ownerID was removed.
func (s *TaskService) Delete(ctx context.Context, taskID, ownerID string) (bool, error) {
	if !validID(taskID) {
		return false, nil
	}
	return s.repomanager.Tasks(s.db).Delete(ctx, taskID, ownerID)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
