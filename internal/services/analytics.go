package services

import (
	"context"
	"errors"
	"time"

	"threadspire/internal/auth"
	"threadspire/internal/logger"
	"threadspire/internal/metrics"
	"threadspire/internal/models"

	"gorm.io/gorm"
)

const TrendingWindow = 7 * 24 * time.Hour

type ThreadStats struct {
	ThreadID      string `json:"thread_id"`
	ViewCount     int    `json:"view_count"`
	UniqueViewers int    `json:"unique_viewers"`
	ForkCount     int    `json:"fork_count"`
	ReactionCount int64  `json:"reaction_count"`
	BookmarkCount int64  `json:"bookmark_count"`
}

type DailyViews struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

type AnalyticsService struct {
	db      *gorm.DB
	log     *logger.Logger
	threads *ThreadService
	ranking ScoreScheduler
}

// RecordView counts one view. Authenticated views are logged, and the
// first logged view of a user also bumps unique_viewers. The view_count
// update runs first so that it locks the analytics row and serializes
// concurrent views of the same thread.
func (s *AnalyticsService) RecordView(ctx context.Context, threadID string) (*models.ThreadAnalytics, error) {
	if _, err := s.threads.findReadable(ctx, threadID); err != nil {
		return nil, err
	}
	userID, authed := auth.UserID(ctx)

	var row models.ThreadAnalytics
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureAnalytics(tx, threadID); err != nil {
			return err
		}
		err := tx.Model(&models.ThreadAnalytics{}).Where("thread_id = ?", threadID).
			UpdateColumns(map[string]interface{}{
				"view_count": gorm.Expr("view_count + ?", 1),
				"updated_at": time.Now(),
			}).Error
		if err != nil {
			return err
		}

		if authed {
			if err := logInteraction(tx, threadID, userID, models.InteractionView); err != nil {
				return err
			}
			var views int64
			err := tx.Model(&models.InteractionLog{}).
				Where("thread_id = ? AND user_id = ? AND interaction_type = ?", threadID, userID, models.InteractionView).
				Count(&views).Error
			if err != nil {
				return err
			}
			if views == 1 {
				err := tx.Model(&models.ThreadAnalytics{}).Where("thread_id = ?", threadID).
					UpdateColumn("unique_viewers", gorm.Expr("unique_viewers + ?", 1)).Error
				if err != nil {
					return err
				}
			}
		}
		return tx.First(&row, "thread_id = ?", threadID).Error
	})
	if err != nil {
		return nil, err
	}

	kind := "anonymous"
	if authed {
		kind = "authenticated"
	}
	metrics.ViewsRecorded.WithLabelValues(kind).Inc()
	s.ranking.ScheduleUpdate(threadID)
	return &row, nil
}

// GetThreadAnalytics reports the counters of a thread, zero when nothing
// was recorded yet.
func (s *AnalyticsService) GetThreadAnalytics(ctx context.Context, threadID string) (*ThreadStats, error) {
	t, err := s.threads.findReadable(ctx, threadID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	stats := &ThreadStats{ThreadID: threadID, ForkCount: t.ForkCount}

	var row models.ThreadAnalytics
	err = db.First(&row, "thread_id = ?", threadID).Error
	switch {
	case err == nil:
		stats.ViewCount = row.ViewCount
		stats.UniqueViewers = row.UniqueViewers
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	if err := db.Model(&models.Reaction{}).Where("thread_id = ?", threadID).Count(&stats.ReactionCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Bookmark{}).Where("thread_id = ?", threadID).Count(&stats.BookmarkCount).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

type Interaction struct {
	Type      string    `json:"interaction_type"`
	CreatedAt time.Time `json:"created_at"`
}

// GetThreadInteractions returns the raw interaction log of a thread, newest
// first. Who interacted is not exposed.
func (s *AnalyticsService) GetThreadInteractions(ctx context.Context, threadID string, limit int) ([]Interaction, error) {
	if _, err := s.threads.findReadable(ctx, threadID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	out := []Interaction{}
	err := s.db.WithContext(ctx).Model(&models.InteractionLog{}).
		Select("interaction_type AS type, created_at").
		Where("thread_id = ?", threadID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetThreadViewsByDay buckets logged views per UTC day over the last days
// days, oldest first, with empty days reported as zero.
func (s *AnalyticsService) GetThreadViewsByDay(ctx context.Context, threadID string, days int) ([]DailyViews, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}
	if _, err := s.threads.findReadable(ctx, threadID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	var stamps []time.Time
	err := s.db.WithContext(ctx).Model(&models.InteractionLog{}).
		Where("thread_id = ? AND interaction_type = ? AND created_at >= ?", threadID, models.InteractionView, start).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]int, days)
	for _, ts := range stamps {
		buckets[ts.UTC().Format("2006-01-02")]++
	}
	out := make([]DailyViews, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		out[i] = DailyViews{Date: day, Views: buckets[day]}
	}
	return out, nil
}

// TrendingThreads ranks visible published threads by logged views inside
// TrendingWindow.
func (s *AnalyticsService) TrendingThreads(ctx context.Context, limit int) ([]ThreadDetail, error) {
	limit = clampLimit(limit)
	q := s.db.WithContext(ctx).Table("interaction_logs").
		Select("interaction_logs.thread_id").
		Joins("JOIN threads ON threads.id = interaction_logs.thread_id").
		Where("interaction_logs.interaction_type = ? AND interaction_logs.created_at >= ?",
			models.InteractionView, time.Now().Add(-TrendingWindow))
	q = visible(ctx, q, true)

	var ids []string
	err := q.Group("interaction_logs.thread_id").
		Order("COUNT(*) DESC").Order("interaction_logs.thread_id").
		Limit(limit).Pluck("interaction_logs.thread_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return s.threads.hydrateIDs(ctx, ids)
}

// FeaturedThreads ranks visible published threads by their stored trend
// score.
func (s *AnalyticsService) FeaturedThreads(ctx context.Context, limit int) ([]ThreadDetail, error) {
	limit = clampLimit(limit)
	q := s.db.WithContext(ctx).Model(&models.Thread{}).
		Joins("LEFT JOIN thread_analytics ON thread_analytics.thread_id = threads.id")
	q = visible(ctx, q, true)

	var threads []models.Thread
	err := q.Order("COALESCE(thread_analytics.trend_score, 0) DESC").
		Order("threads.created_at DESC").
		Limit(limit).Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return s.threads.hydrate(ctx, threads)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 50 {
		return 50
	}
	return limit
}
