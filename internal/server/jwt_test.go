package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	token, err := issuer.Generate(7, "duel")
	require.NoError(t, err)

	playerID, arenaID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int32(7), playerID)
	assert.Equal(t, "duel", arenaID)
}

func TestTokenRejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	token, err := issuer.Generate(7, "duel")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, _, err := NewTokenIssuer("other", time.Minute).Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewTokenIssuer("secret", time.Minute)
		late.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, _, err := late.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := issuer.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
