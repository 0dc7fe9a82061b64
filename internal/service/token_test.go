package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("access-secret-access-secret-access", time.Hour)
	userID := uuid.New()

	token, err := m.GenerateAccess(userID, models.RoleAdmin)
	require.NoError(t, err)

	gotID, role, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, models.RoleAdmin, role)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager("secret-one-secret-one-secret-one", time.Hour)
	verifier := NewTokenManager("secret-two-secret-two-secret-two", time.Hour)

	token, err := issuer.GenerateAccess(uuid.New(), models.RoleClient)
	require.NoError(t, err)

	_, _, err = verifier.ParseAccess(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager("access-secret-access-secret-access", -time.Minute)
	token, err := m.GenerateAccess(uuid.New(), models.RoleClient)
	require.NoError(t, err)

	_, _, err = m.ParseAccess(token)
	assert.Error(t, err)
}
