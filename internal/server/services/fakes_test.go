package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/dbx"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/users"
)

// --- in-memory repositories ---

type fakeUsersRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	getErr  error
	creates int
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	cp := *u
	cp.CreatedAt = time.Now()
	f.byID[u.ID] = &cp
	f.creates++
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeTasksRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.Task
	createErr error
	listErr   error
}

func newFakeTasksRepo() *fakeTasksRepo {
	return &fakeTasksRepo{rows: map[string]*models.Task{}}
}

func (f *fakeTasksRepo) Create(_ context.Context, t *models.Task) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	cp := *t
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.rows[t.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeTasksRepo) Get(_ context.Context, id, userID string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasksRepo) filter(userID string, keep func(*models.Task) bool) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*models.Task{}
	for _, t := range f.rows {
		if t.UserID == userID && keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (f *fakeTasksRepo) ListByOwner(_ context.Context, userID string) ([]*models.Task, error) {
	return f.filter(userID, func(*models.Task) bool { return true })
}

func (f *fakeTasksRepo) ListIncompleteDueBefore(_ context.Context, userID string, before time.Time) ([]*models.Task, error) {
	return f.filter(userID, func(t *models.Task) bool { return !t.Completed && t.DueDate.Before(before) })
}

func (f *fakeTasksRepo) ListIncompleteDueBetween(_ context.Context, userID string, from, to time.Time) ([]*models.Task, error) {
	return f.filter(userID, func(t *models.Task) bool {
		return !t.Completed && !t.DueDate.Before(from) && t.DueDate.Before(to)
	})
}

func (f *fakeTasksRepo) ListIncompleteDueFrom(_ context.Context, userID string, from time.Time) ([]*models.Task, error) {
	return f.filter(userID, func(t *models.Task) bool { return !t.Completed && !t.DueDate.Before(from) })
}

func (f *fakeTasksRepo) ListCompleted(_ context.Context, userID string) ([]*models.Task, error) {
	return f.filter(userID, func(t *models.Task) bool { return t.Completed })
}

func (f *fakeTasksRepo) SetCompleted(_ context.Context, id, userID string, completed bool) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.UserID != userID {
		return nil, common.ErrNotFound
	}
	t.Completed = completed
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

func (f *fakeTasksRepo) Delete(_ context.Context, id, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	t *fakeTasksRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), t: newFakeTasksRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository           { return m.u }
func (m *fakeRepoManager) Tasks(db dbx.DBTX) tasks.Repository           { return m.t }
