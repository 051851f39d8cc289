package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"threadspire/internal/logger"
	"threadspire/internal/models"
	"threadspire/internal/utils"

	"gorm.io/gorm"
)

const (
	rankingBatchSize = 50
	rankingFlush     = 500 * time.Millisecond
)

// RankingService recomputes thread trend scores off the request path.
// Updates are queued, de-duplicated and processed in batches.
type RankingService struct {
	db      *gorm.DB
	log     *logger.Logger
	queue   chan string
	pending map[string]bool
	mu      sync.Mutex
}

func NewRankingService(db *gorm.DB, log *logger.Logger) *RankingService {
	return &RankingService{
		db:      db,
		log:     log.With("service", "RankingService"),
		queue:   make(chan string, 1000),
		pending: make(map[string]bool),
	}
}

// Start runs the worker until ctx is done.
func (s *RankingService) Start(ctx context.Context) {
	go s.worker(ctx)
}

// ScheduleUpdate queues a thread without blocking. A thread already queued
// is skipped.
func (s *RankingService) ScheduleUpdate(threadID string) {
	s.mu.Lock()
	if s.pending[threadID] {
		s.mu.Unlock()
		return
	}
	s.pending[threadID] = true
	s.mu.Unlock()

	select {
	case s.queue <- threadID:
	default:
		s.mu.Lock()
		delete(s.pending, threadID)
		s.mu.Unlock()
		s.log.Warn("ranking queue full, dropping update", "threadID", threadID)
	}
}

func (s *RankingService) worker(ctx context.Context) {
	batch := make([]string, 0, rankingBatchSize)
	ticker := time.NewTicker(rankingFlush)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			batch = append(batch, id)
			if len(batch) >= rankingBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *RankingService) processBatch(ctx context.Context, ids []string) {
	for _, id := range ids {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()

		if err := s.UpdateScore(ctx, id); err != nil {
			s.log.Warn("trend score update failed", "threadID", id, "error", err)
		}
	}
}

// UpdateScore recomputes and stores the trend score of one thread.
func (s *RankingService) UpdateScore(ctx context.Context, threadID string) error {
	db := s.db.WithContext(ctx)
	var t models.Thread
	if err := db.Select("id", "fork_count", "created_at").First(&t, "id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	var reactions, bookmarks int64
	if err := db.Model(&models.Reaction{}).Where("thread_id = ?", threadID).Count(&reactions).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Bookmark{}).Where("thread_id = ?", threadID).Count(&bookmarks).Error; err != nil {
		return err
	}
	var views int
	err := db.Model(&models.ThreadAnalytics{}).Where("thread_id = ?", threadID).
		Select("view_count").Scan(&views).Error
	if err != nil {
		return err
	}

	score := utils.TrendScore(t.CreatedAt, int(reactions), t.ForkCount, int(bookmarks), views)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := ensureAnalytics(tx, threadID); err != nil {
			return err
		}
		return tx.Model(&models.ThreadAnalytics{}).Where("thread_id = ?", threadID).
			UpdateColumn("trend_score", score).Error
	})
}

// RecomputeRecent refreshes threads created in the trending window plus the
// current top 30, each once. Scores decay with age, so this runs on a
// schedule as well as on events.
func (s *RankingService) RecomputeRecent(ctx context.Context) error {
	processed := make(map[string]bool)
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Thread{}).
		Where("created_at >= ?", time.Now().Add(-TrendingWindow)).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	var top []string
	err = s.db.WithContext(ctx).Model(&models.ThreadAnalytics{}).
		Order("trend_score DESC").Limit(30).Pluck("thread_id", &top).Error
	if err != nil {
		return err
	}

	for _, id := range append(ids, top...) {
		if processed[id] {
			continue
		}
		processed[id] = true
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.UpdateScore(ctx, id); err != nil {
			s.log.Warn("trend score update failed", "threadID", id, "error", err)
		}
	}
	s.log.Info("trend scores recomputed", "count", len(processed))
	return nil
}
