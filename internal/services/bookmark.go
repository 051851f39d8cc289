package services

import (
	"context"

	"threadspire/internal/models"

	"gorm.io/gorm"
)

type BookmarkService struct {
	db      *gorm.DB
	threads *ThreadService
	ranking ScoreScheduler
}

// AddBookmark is idempotent; only the first call logs an interaction.
func (s *BookmarkService) AddBookmark(ctx context.Context, threadID string) error {
	userID, err := requireUser(ctx, "bookmark")
	if err != nil {
		return err
	}
	if _, err := s.threads.findReadable(ctx, threadID); err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(onConflictDoNothing).Create(&models.Bookmark{UserID: userID, ThreadID: threadID})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		return logInteraction(tx, threadID, userID, models.InteractionBookmark)
	})
	if err != nil {
		return err
	}
	s.ranking.ScheduleUpdate(threadID)
	return nil
}

func (s *BookmarkService) RemoveBookmark(ctx context.Context, threadID string) error {
	userID, err := requireUser(ctx, "remove a bookmark")
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Where("user_id = ? AND thread_id = ?", userID, threadID).
		Delete(&models.Bookmark{}).Error
	if err != nil {
		return err
	}
	s.ranking.ScheduleUpdate(threadID)
	return nil
}

// ToggleBookmark flips the bookmark and reports whether it is now set.
func (s *BookmarkService) ToggleBookmark(ctx context.Context, threadID string) (bool, error) {
	marked, err := s.IsBookmarked(ctx, threadID)
	if err != nil {
		return false, err
	}
	if marked {
		return false, s.RemoveBookmark(ctx, threadID)
	}
	return true, s.AddBookmark(ctx, threadID)
}

func (s *BookmarkService) IsBookmarked(ctx context.Context, threadID string) (bool, error) {
	userID, err := requireUser(ctx, "read bookmarks")
	if err != nil {
		return false, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("user_id = ? AND thread_id = ?", userID, threadID).Count(&n).Error
	return n > 0, err
}

// ListBookmarks returns the caller's bookmarked threads, newest bookmark
// first. Threads that are no longer readable are skipped.
func (s *BookmarkService) ListBookmarks(ctx context.Context, page, limit int) ([]ThreadDetail, error) {
	userID, err := requireUser(ctx, "read bookmarks")
	if err != nil {
		return nil, err
	}
	f := normalizeFilter(ThreadFilter{Page: page, Limit: limit})
	var ids []string
	err = s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").
		Offset((f.Page-1)*f.Limit).Limit(f.Limit).
		Pluck("thread_id", &ids).Error
	if err != nil {
		return nil, err
	}
	details, err := s.threads.hydrateIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := details[:0]
	for _, d := range details {
		if canRead(ctx, &d.Thread) == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func countBookmarks(db *gorm.DB, threadIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ThreadID string
		Count    int64
	}
	err := db.Model(&models.Bookmark{}).Select("thread_id, COUNT(*) AS count").
		Where("thread_id IN ?", threadIDs).Group("thread_id").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ThreadID] = r.Count
	}
	return out, nil
}
