package httpx

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/services"
	"github.com/google/uuid"
)

type fakeIdentity struct {
	mu        sync.Mutex
	users     map[string]*models.User
	passwords map[string]string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{users: map[string]*models.User{}, passwords: map[string]string{}}
}

func (f *fakeIdentity) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(in.Password) < 8 {
		return nil, common.NewValidationError("password", "password should be at least 8 characters")
	}
	email := services.NormalizeEmail(in.Email)
	for _, u := range f.users {
		if u.Email == email {
			return nil, common.NewValidationError("email", "email already registered")
		}
	}
	u := &models.User{ID: uuid.NewString(), FirstName: in.FirstName, LastName: in.LastName, Email: email}
	f.users[u.ID] = u
	f.passwords[u.ID] = in.Password
	return u, nil
}

func (f *fakeIdentity) VerifyCredentials(_ context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = services.NormalizeEmail(email)
	for id, u := range f.users {
		if u.Email == email && f.passwords[id] == password {
			return u, nil
		}
	}
	return nil, common.ErrAuthentication
}

func (f *fakeIdentity) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

type fakeTasks struct {
	mu      sync.Mutex
	rows    map[string]*models.Task
	listErr error
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{rows: map[string]*models.Task{}}
}

func (f *fakeTasks) Create(_ context.Context, ownerID, title, dueDate string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(title) < models.MinTitleLength {
		return nil, common.NewValidationError("title", "title should be at least 5 characters")
	}
	if dueDate == "" {
		return nil, common.NewValidationError("dueDate", "please select a due date")
	}
	due, err := time.Parse("2006-01-02", dueDate)
	if err != nil {
		return nil, common.NewValidationError("dueDate", "bad date")
	}
	t := &models.Task{ID: uuid.NewString(), UserID: ownerID, Title: title, DueDate: due}
	f.rows[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) ListGrouped(_ context.Context, ownerID string) (*services.Grouped, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	g := &services.Grouped{
		Overdue:   []*models.Task{},
		DueToday:  []*models.Task{},
		DueLater:  []*models.Task{},
		Completed: []*models.Task{},
	}
	for _, t := range f.rows {
		if t.UserID != ownerID {
			continue
		}
		cp := *t
		if t.Completed {
			g.Completed = append(g.Completed, &cp)
		} else {
			g.DueLater = append(g.DueLater, &cp)
		}
	}
	return g, nil
}

func (f *fakeTasks) Get(_ context.Context, taskID, ownerID string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[taskID]
	if !ok || t.UserID != ownerID {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) SetCompleted(_ context.Context, taskID, ownerID string, completed bool) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[taskID]
	if !ok || t.UserID != ownerID {
		return nil, common.ErrNotFound
	}
	t.Completed = completed
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) Delete(_ context.Context, taskID, ownerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[taskID]
	if !ok || t.UserID != ownerID {
		return false, nil
	}
	delete(f.rows, taskID)
	return true, nil
}
