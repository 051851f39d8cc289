package services

import (
	"context"

	"threadspire/internal/logger"
	"threadspire/internal/metrics"
	"threadspire/internal/models"

	"gorm.io/gorm"
)

type ForkService struct {
	db      *gorm.DB
	log     *logger.Logger
	threads *ThreadService
}

// ForkThread copies a readable thread into a new unpublished thread owned
// by the caller and returns the new id. Every write, including the parent's
// fork counter, happens in one transaction.
func (s *ForkService) ForkThread(ctx context.Context, originalID string) (string, error) {
	userID, err := requireUser(ctx, "fork a thread")
	if err != nil {
		return "", err
	}
	original, err := s.threads.GetThreadByID(ctx, originalID)
	if err != nil {
		return "", err
	}

	contents := make([]string, len(original.Segments))
	for i, seg := range original.Segments {
		contents[i] = seg.Content
	}
	parent := original.ID
	fork := models.Thread{
		UserID:           userID,
		Title:            original.Title,
		IsPublished:      false,
		IsPrivate:        original.IsPrivate,
		CoverImage:       original.CoverImage,
		Snippet:          snippetOf(contents),
		OriginalThreadID: &parent,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkLineage(tx, parent); err != nil {
			return err
		}
		if err := tx.Create(&fork).Error; err != nil {
			return atStep("thread", err)
		}
		if err := insertSegments(tx, fork.ID, contents); err != nil {
			return atStep("segments", err)
		}
		if err := s.threads.tags.link(tx, fork.ID, original.Tags); err != nil {
			return atStep("tags", err)
		}
		res := tx.Model(&models.Thread{}).Where("id = ?", parent).
			UpdateColumn("fork_count", gorm.Expr("fork_count + ?", 1))
		if res.Error != nil {
			return atStep("fork_count", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Resource: "thread", ID: parent}
		}
		if err := logInteraction(tx, parent, userID, models.InteractionFork); err != nil {
			return atStep("interaction", err)
		}
		return atStep("analytics", ensureAnalytics(tx, fork.ID))
	})
	if err != nil {
		return "", partialFailure("forkThread", err)
	}

	metrics.ThreadsCreated.WithLabelValues("fork").Inc()
	s.log.Debug("thread forked", "original", parent, "fork", fork.ID, "userID", userID)
	if s.threads.ranking != nil {
		s.threads.ranking.ScheduleUpdate(parent)
	}
	s.threads.notify(ctx, parent, ThreadUpdated)
	return fork.ID, nil
}
