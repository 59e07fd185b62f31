// Package services contains server-side business logic. This file implements
// IdentityService, which registers accounts and verifies credentials.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/server/auth"
	"github.com/dmitrijs2005/todokeeper/internal/server/config"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// IdentityService owns user accounts. Password hashes never leave it.
type IdentityService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	bcryptCost        int
	minPasswordLength int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewIdentityService constructs an IdentityService using repositories and server config.
func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *IdentityService {
	return &IdentityService{
		db:                db,
		repomanager:       m,
		bcryptCost:        cfg.BcryptCost,
		minPasswordLength: cfg.MinPasswordLength,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates in, hashes the password and creates the user.
// A taken email yields a *common.ValidationError on field "email".
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	firstName := strings.TrimSpace(in.FirstName)
	email := NormalizeEmail(in.Email)

	switch {
	case firstName == "":
		return nil, common.NewValidationError("firstName", "first name is required")
	case email == "":
		return nil, common.NewValidationError("email", "email is required")
	case !strings.Contains(email, "@"):
		return nil, common.NewValidationError("email", "email is invalid")
	case in.Password == "":
		return nil, common.NewValidationError("password", "password is required")
	case len(in.Password) > maxPasswordBytes:
		return nil, common.NewValidationError("password",
			fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	case utf8.RuneCountInString(in.Password) < s.minPasswordLength:
		return nil, common.NewValidationError("password",
			fmt.Sprintf("password should be at least %d characters", s.minPasswordLength))
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    firstName,
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
	}

	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.NewValidationError("email", "email already registered")
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// VerifyCredentials returns the user for a matching email and password.
// Unknown email and wrong password both yield common.ErrAuthentication.
func (s *IdentityService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// burn the same bcrypt work as a real comparison
			_ = auth.ComparePassword(s.getDummyHash(), password)
			return nil, common.ErrAuthentication
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, common.ErrAuthentication
	}
	return user, nil
}

// FindByID returns the user with id or common.ErrNotFound.
func (s *IdentityService) FindByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

func (s *IdentityService) getDummyHash() []byte {
	s.dummyOnce.Do(func() {
		pw, err := common.MakeRandHexString(16)
		if err != nil {
			pw = "todokeeper-dummy-password"
		}
		s.dummyHash, _ = auth.HashPassword(pw, s.bcryptCost)
	})
	return s.dummyHash
}
