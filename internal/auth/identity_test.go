package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), "u1")
	id, ok := UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	assert.Equal(t, context.Background(), WithUser(context.Background(), ""))
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := IssueToken("s3cret", "user-42", time.Minute)
	require.NoError(t, err)

	sub, err := ParseToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)

	_, err = ParseToken("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	tok, err := IssueToken("s3cret", "user-42", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("s3cret", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
