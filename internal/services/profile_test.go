package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileUpsert(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := as("alice")

	assert.Equal(t, UnknownCreator, svc.Profiles.DisplayName(ctx, "alice"))

	p, err := svc.Profiles.Upsert(ctx, ProfileInput{DisplayName: "Alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.Avatar, "a default avatar is assigned")

	_, err = svc.Profiles.Upsert(ctx, ProfileInput{DisplayName: "Alice B", Bio: "writes"})
	require.NoError(t, err)
	got, err := svc.Profiles.Get(anon, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.DisplayName)
	assert.Equal(t, "writes", got.Bio)
	assert.Equal(t, "Alice B", svc.Profiles.DisplayName(anon, "alice"))

	_, err = svc.Profiles.Upsert(ctx, ProfileInput{DisplayName: " "})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Profiles.Get(anon, "nobody")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
