package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/google/uuid"
)

// Session is an authenticated session resolved from a token.
type Session struct {
	ID     string
	UserID string
}

// SessionManager issues session tokens and checks them against a
// SessionStore.
type SessionManager struct {
	store    SessionStore
	secret   []byte
	validity time.Duration
}

func NewSessionManager(store SessionStore, secret []byte, validity time.Duration) *SessionManager {
	return &SessionManager{store: store, secret: secret, validity: validity}
}

// Validity is the lifetime of tokens issued by Start.
func (m *SessionManager) Validity() time.Duration {
	return m.validity
}

// Start registers a new session for userID and returns its signed token.
func (m *SessionManager) Start(ctx context.Context, userID string) (string, error) {
	sessionID := uuid.NewString()
	if err := m.store.Save(ctx, sessionID, userID, m.validity); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	token, err := GenerateToken(userID, sessionID, m.secret, m.validity)
	if err != nil {
		_ = m.store.Delete(ctx, sessionID)
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Authenticate resolves token to a live session.
func (m *SessionManager) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := ParseToken(token, m.secret)
	if err != nil {
		return nil, err
	}
	userID, err := m.store.Lookup(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if userID != claims.UserID {
		return nil, common.ErrInvalidToken
	}
	return &Session{ID: claims.ID, UserID: userID}, nil
}

// End revokes the session named by token. Invalid tokens are ignored.
func (m *SessionManager) End(ctx context.Context, token string) error {
	claims, err := ParseToken(token, m.secret)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, claims.ID)
}
