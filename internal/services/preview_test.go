package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePreview(t *testing.T) {
	svc, conn := newTestServices(t)
	in := CreateThreadInput{Title: " Draft ", Segments: []string{"one", "two"}, Tags: []string{"go"}}

	p, err := svc.Previews.GeneratePreview(anon, in)
	require.NoError(t, err)
	assert.Equal(t, "Draft", p.Title)
	assert.Equal(t, AnonymousName, p.Author)
	assert.Equal(t, "one", p.Snippet)
	require.Len(t, p.Segments, 2)
	assert.Equal(t, 1, p.Segments[1].OrderIndex)
	assert.Zero(t, p.ReactionCounts.Total())

	_, err = svc.Profiles.Upsert(as("alice"), ProfileInput{DisplayName: "Alice"})
	require.NoError(t, err)
	p, err = svc.Previews.GeneratePreview(as("alice"), in)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Author)

	var threads int64
	conn.Table("threads").Count(&threads)
	assert.Zero(t, threads, "previews are never persisted")

	_, err = svc.Previews.GeneratePreview(anon, CreateThreadInput{Title: "x"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestSavePreviewAsDraft(t *testing.T) {
	svc, _ := newTestServices(t)
	d, err := svc.Previews.SavePreviewAsDraft(as("alice"), CreateThreadInput{
		Title: "Saved", Segments: []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []DraftBlock{{Content: "a", Type: BlockText}, {Content: "b", Type: BlockText}}, d.Content)

	_, err = svc.Previews.SavePreviewAsDraft(anon, CreateThreadInput{Title: "x", Segments: []string{"a"}})
	var pe *PermissionError
	assert.ErrorAs(t, err, &pe)
}
