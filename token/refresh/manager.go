package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var ErrExpired = errors.New("refresh token expired")

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo        Repo
	expiry      time.Duration
	tokenLength int
}

func NewManager(repo Repo, expiry time.Duration, tokenLength int) *Manager {
	if tokenLength <= 0 {
		tokenLength = 32
	}
	return &Manager{
		repo:        repo,
		expiry:      expiry,
		tokenLength: tokenLength,
	}
}

func (m *Manager) Expiry() time.Duration {
	return m.expiry
}

// Create generates a new refresh token and stores it. A user holds at most
// one refresh token; any previous one is revoked.
func (m *Manager) Create(userID string) (string, error) {
	if existing, err := m.repo.GetByUserID(userID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.Token); err != nil {
			return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, m.tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return tokenStr, nil
}

// Validate returns the stored record for a live token. Expired tokens are
// deleted and reported as ErrExpired.
func (m *Manager) Validate(token string) (*StoredRefreshToken, error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, err
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return nil, ErrExpired
	}
	return rt, nil
}

// Rotate swaps a valid token for a fresh one and returns it with the owner.
func (m *Manager) Rotate(token string) (string, string, error) {
	rt, err := m.Validate(token)
	if err != nil {
		return "", "", err
	}
	next, err := m.Create(rt.UserID)
	if err != nil {
		return "", "", err
	}
	return next, rt.UserID, nil
}

// Delete removes a refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// RevokeUser deletes the refresh token held by userID.
func (m *Manager) RevokeUser(userID string) error {
	rt, err := m.repo.GetByUserID(userID)
	if err != nil {
		return err
	}
	return m.repo.Delete(rt.Token)
}

func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return NowTimeFunc().Sub(rt.Iat) > m.expiry
}
