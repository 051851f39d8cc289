package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordViewCountsUniqueViewers(t *testing.T) {
	svc, _ := newTestServices(t)
	th := createThread(t, svc, "alice", CreateThreadInput{Publish: true})

	for i := 0; i < 5; i++ {
		_, err := svc.Analytics.RecordView(as("bob"), th.ID)
		require.NoError(t, err)
	}
	stats, err := svc.Analytics.GetThreadAnalytics(anon, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.ViewCount)
	assert.Equal(t, 1, stats.UniqueViewers)

	for i := 0; i < 3; i++ {
		row, err := svc.Analytics.RecordView(as(fmt.Sprintf("viewer-%d", i)), th.ID)
		require.NoError(t, err)
		assert.Equal(t, 2+i, row.UniqueViewers)
	}
	stats, err = svc.Analytics.GetThreadAnalytics(anon, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stats.ViewCount)
	assert.Equal(t, 4, stats.UniqueViewers)
}

func TestRecordViewAnonymous(t *testing.T) {
	svc, _ := newTestServices(t)
	th := createThread(t, svc, "alice", CreateThreadInput{Publish: true})

	row, err := svc.Analytics.RecordView(anon, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.ViewCount)
	assert.Zero(t, row.UniqueViewers)

	private := createThread(t, svc, "alice", CreateThreadInput{Publish: true, Private: true})
	_, err = svc.Analytics.RecordView(anon, private.ID)
	var pa *PrivateAccessError
	assert.ErrorAs(t, err, &pa)
}

func TestThreadAnalyticsTotals(t *testing.T) {
	svc, _ := newTestServices(t)
	th := createThread(t, svc, "alice", CreateThreadInput{Publish: true})

	_, err := svc.Reactions.AddReaction(as("bob"), th.ID, "🔥", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Bookmarks.AddBookmark(as("bob"), th.ID))
	_, err = svc.Forks.ForkThread(as("bob"), th.ID)
	require.NoError(t, err)

	stats, err := svc.Analytics.GetThreadAnalytics(anon, th.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ReactionCount)
	assert.EqualValues(t, 1, stats.BookmarkCount)
	assert.Equal(t, 1, stats.ForkCount)
	assert.Zero(t, stats.ViewCount)
}

func TestThreadViewsByDay(t *testing.T) {
	svc, _ := newTestServices(t)
	th := createThread(t, svc, "alice", CreateThreadInput{Publish: true})
	for _, u := range []string{"bob", "carol"} {
		_, err := svc.Analytics.RecordView(as(u), th.ID)
		require.NoError(t, err)
	}

	days, err := svc.Analytics.GetThreadViewsByDay(anon, th.ID, 7)
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), days[6].Date)
	total := 0
	for _, d := range days {
		total += d.Views
	}
	assert.Equal(t, 2, total)

	days, err = svc.Analytics.GetThreadViewsByDay(anon, th.ID, 0)
	require.NoError(t, err)
	assert.Len(t, days, 30)
}

func TestTrendingThreads(t *testing.T) {
	svc, _ := newTestServices(t)
	quiet := createThread(t, svc, "alice", CreateThreadInput{Title: "quiet", Publish: true})
	busy := createThread(t, svc, "alice", CreateThreadInput{Title: "busy", Publish: true})
	hidden := createThread(t, svc, "alice", CreateThreadInput{Title: "hidden", Publish: true, Private: true})

	for _, u := range []string{"a", "b", "c"} {
		_, err := svc.Analytics.RecordView(as(u), busy.ID)
		require.NoError(t, err)
		_, err = svc.Analytics.RecordView(as(u), hidden.ID)
		require.NoError(t, err)
	}
	_, err := svc.Analytics.RecordView(as("a"), quiet.ID)
	require.NoError(t, err)

	trending, err := svc.Analytics.TrendingThreads(anon, 10)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, busy.ID, trending[0].ID)
	assert.Equal(t, quiet.ID, trending[1].ID)
}

func TestFeaturedThreadsFollowTrendScore(t *testing.T) {
	svc, _ := newTestServices(t)
	plain := createThread(t, svc, "alice", CreateThreadInput{Title: "plain", Publish: true})
	popular := createThread(t, svc, "alice", CreateThreadInput{Title: "popular", Publish: true})

	for _, u := range []string{"bob", "carol"} {
		_, err := svc.Forks.ForkThread(as(u), popular.ID)
		require.NoError(t, err)
		_, err = svc.Reactions.AddReaction(as(u), popular.ID, "🔥", nil)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Ranking.UpdateScore(anon, plain.ID))
	require.NoError(t, svc.Ranking.UpdateScore(anon, popular.ID))

	featured, err := svc.Analytics.FeaturedThreads(anon, 10)
	require.NoError(t, err)
	require.Len(t, featured, 2, "unpublished forks are not featured")
	assert.Equal(t, popular.ID, featured[0].ID)
	assert.Equal(t, plain.ID, featured[1].ID)
}

func TestRecomputeRecent(t *testing.T) {
	svc, conn := newTestServices(t)
	th := createThread(t, svc, "alice", CreateThreadInput{Publish: true})
	_, err := svc.Reactions.AddReaction(as("bob"), th.ID, "🔥", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Ranking.RecomputeRecent(anon))

	var score float64
	require.NoError(t, conn.Table("thread_analytics").Where("thread_id = ?", th.ID).
		Select("trend_score").Scan(&score).Error)
	assert.Greater(t, score, 0.0)
}

func TestGetThreadInteractions(t *testing.T) {
	svc, _ := newTestServices(t)
	th := createThread(t, svc, "alice", CreateThreadInput{Publish: true})

	_, err := svc.Analytics.RecordView(as("bob"), th.ID)
	require.NoError(t, err)
	_, err = svc.Reactions.AddReaction(as("bob"), th.ID, "💡", nil)
	require.NoError(t, err)
	_, err = svc.Analytics.RecordView(anon, th.ID)
	require.NoError(t, err)

	got, err := svc.Analytics.GetThreadInteractions(anon, th.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	types := []string{got[0].Type, got[1].Type}
	assert.ElementsMatch(t, []string{"view", "reaction"}, types)
	assert.False(t, got[0].CreatedAt.IsZero())

	got, err = svc.Analytics.GetThreadInteractions(anon, th.ID, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	private := createThread(t, svc, "alice", CreateThreadInput{Publish: true, Private: true})
	_, err = svc.Analytics.GetThreadInteractions(anon, private.ID, 0)
	var pa *PrivateAccessError
	assert.ErrorAs(t, err, &pa)
}
