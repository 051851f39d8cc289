package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddThreadToCollectionIsIdempotent(t *testing.T) {
	svc, _ := newTestServices(t)
	th := createThread(t, svc, "alice", CreateThreadInput{Publish: true})
	ctx := as("bob")
	col, err := svc.Collections.CreateCollection(ctx, "  reading  ", false)
	require.NoError(t, err)
	assert.Equal(t, "reading", col.Name)

	require.NoError(t, svc.Collections.AddThreadToCollection(ctx, col.ID, th.ID))
	require.NoError(t, svc.Collections.AddThreadToCollection(ctx, col.ID, th.ID))

	got, err := svc.Collections.GetCollection(anon, col.ID)
	require.NoError(t, err)
	require.Len(t, got.Threads, 1)
	assert.Equal(t, th.ID, got.Threads[0].ThreadID)
	require.NotNil(t, got.Threads[0].Thread)
	assert.False(t, got.Threads[0].Placeholder)

	in, err := svc.Collections.IsThreadInCollection(ctx, col.ID, th.ID)
	require.NoError(t, err)
	assert.True(t, in)

	require.NoError(t, svc.Collections.RemoveThreadFromCollection(ctx, col.ID, th.ID))
	require.NoError(t, svc.Collections.RemoveThreadFromCollection(ctx, col.ID, th.ID))
	in, err = svc.Collections.IsThreadInCollection(ctx, col.ID, th.ID)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestCollectionOwnership(t *testing.T) {
	svc, _ := newTestServices(t)
	th := createThread(t, svc, "alice", CreateThreadInput{Publish: true})
	col, err := svc.Collections.CreateCollection(as("bob"), "mine", true)
	require.NoError(t, err)

	var pe *PermissionError
	err = svc.Collections.AddThreadToCollection(as("carol"), col.ID, th.ID)
	assert.ErrorAs(t, err, &pe)
	_, err = svc.Collections.UpdateCollection(as("carol"), col.ID, CollectionUpdate{})
	assert.ErrorAs(t, err, &pe)
	err = svc.Collections.DeleteCollection(as("carol"), col.ID)
	assert.ErrorAs(t, err, &pe)

	_, err = svc.Collections.GetCollection(as("carol"), col.ID)
	var pa *PrivateAccessError
	assert.ErrorAs(t, err, &pa)
	_, err = svc.Collections.GetCollection(as("bob"), col.ID)
	assert.NoError(t, err)

	_, err = svc.Collections.CreateCollection(as("bob"), " ", false)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCollectionPlaceholders(t *testing.T) {
	svc, _ := newTestServices(t)
	kept := createThread(t, svc, "alice", CreateThreadInput{Publish: true})
	gone := createThread(t, svc, "alice", CreateThreadInput{Publish: true})
	private := createThread(t, svc, "alice", CreateThreadInput{Publish: true, Private: true})

	ctx := as("bob")
	col, err := svc.Collections.CreateCollection(ctx, "mixed", false)
	require.NoError(t, err)
	for _, id := range []string{kept.ID, gone.ID, private.ID} {
		require.NoError(t, svc.Collections.AddThreadToCollection(ctx, col.ID, id))
	}
	require.NoError(t, svc.Threads.DeleteThread(as("alice"), gone.ID))

	got, err := svc.Collections.GetCollection(anon, col.ID)
	require.NoError(t, err)
	require.Len(t, got.Threads, 2, "deleting a thread drops its memberships")

	reasons := map[string]string{}
	for _, e := range got.Threads {
		reasons[e.ThreadID] = e.Reason
	}
	assert.Equal(t, "", reasons[kept.ID])
	assert.Equal(t, "private", reasons[private.ID])

	require.NoError(t, svc.Collections.AddThreadToCollection(ctx, col.ID, "never-existed"))
	got, err = svc.Collections.GetCollection(anon, col.ID)
	require.NoError(t, err)
	for _, e := range got.Threads {
		if e.ThreadID == "never-existed" {
			assert.True(t, e.Placeholder)
			assert.Equal(t, "deleted", e.Reason)
		}
	}
}

func TestListAndDeleteCollections(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := as("bob")
	pub, err := svc.Collections.CreateCollection(ctx, "public", false)
	require.NoError(t, err)
	_, err = svc.Collections.CreateCollection(ctx, "secret", true)
	require.NoError(t, err)

	own, err := svc.Collections.ListUserCollections(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, own, 2)

	others, err := svc.Collections.ListUserCollections(anon, "bob")
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, pub.ID, others[0].ID)

	name := "renamed"
	private := true
	updated, err := svc.Collections.UpdateCollection(ctx, pub.ID, CollectionUpdate{Name: &name, IsPrivate: &private})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.True(t, updated.IsPrivate)

	require.NoError(t, svc.Collections.DeleteCollection(ctx, pub.ID))
	_, err = svc.Collections.GetCollection(ctx, pub.ID)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
