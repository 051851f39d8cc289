package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"threadspire/internal/auth"
	"threadspire/internal/logger"
	"threadspire/internal/metrics"
	"threadspire/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionTypes is the fixed reaction vocabulary, in display order.
var ReactionTypes = []string{"🤯", "💡", "😌", "🔥", "🫶"}

var onConflictDoNothing = clause.OnConflict{DoNothing: true}

func IsReactionType(t string) bool {
	for _, rt := range ReactionTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// ReactionCounts always holds every reaction type.
type ReactionCounts map[string]int

func NewReactionCounts() ReactionCounts {
	c := make(ReactionCounts, len(ReactionTypes))
	for _, t := range ReactionTypes {
		c[t] = 0
	}
	return c
}

func (c ReactionCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// ReactionState is the outcome of a toggle: the caller's active reaction on
// the target, if any, and the recomputed counts.
type ReactionState struct {
	Active *string        `json:"active"`
	Counts ReactionCounts `json:"counts"`
}

type ReactionUser struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionChannel is the notification key for a reaction target.
func ReactionChannel(threadID string, segmentID *string) string {
	if segmentID == nil || *segmentID == "" {
		return "reactions:" + threadID
	}
	return "reactions:" + threadID + ":" + *segmentID
}

type ReactionService struct {
	db       *gorm.DB
	log      *logger.Logger
	broker   Broker
	threads  *ThreadService
	profiles *ProfileService
	ranking  ScoreScheduler
}

func validateReactionType(t string) error {
	if !IsReactionType(t) {
		return &ValidationError{Field: "type", Message: "unknown reaction type " + t}
	}
	return nil
}

// checkTarget verifies the thread is readable and the segment, when given,
// belongs to it.
func (s *ReactionService) checkTarget(ctx context.Context, threadID string, segmentID *string) error {
	if _, err := s.threads.findReadable(ctx, threadID); err != nil {
		return err
	}
	if segmentID == nil || *segmentID == "" {
		return nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Segment{}).
		Where("id = ? AND thread_id = ?", *segmentID, threadID).Count(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Resource: "segment", ID: *segmentID}
	}
	return nil
}

// AddReaction places a reaction of the given type. Repeating the active
// type removes it; a different type replaces it.
func (s *ReactionService) AddReaction(ctx context.Context, threadID, reactionType string, segmentID *string) (*ReactionState, error) {
	if err := validateReactionType(reactionType); err != nil {
		return nil, err
	}
	userID, err := requireUser(ctx, "react")
	if err != nil {
		return nil, err
	}
	if err := s.checkTarget(ctx, threadID, segmentID); err != nil {
		return nil, err
	}
	target := models.ReactionTarget(segmentID)

	var (
		active *string
		action string
	)
	toggle := func(tx *gorm.DB) error {
		active, action = nil, "add"
		var existing models.Reaction
		err := tx.Where("thread_id = ? AND target = ? AND user_id = ?", threadID, target, userID).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if existing.Type == reactionType {
				action = "remove"
				return nil
			}
			action = "switch"
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		r := models.Reaction{
			ThreadID:  threadID,
			SegmentID: normalizeSegmentID(segmentID),
			Target:    target,
			UserID:    userID,
			Type:      reactionType,
		}
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		active = &r.Type
		return logInteraction(tx, threadID, userID, models.InteractionReaction)
	}
	err = s.db.WithContext(ctx).Transaction(toggle)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent toggle by the same user committed first; replay
		// against its state.
		err = s.db.WithContext(ctx).Transaction(toggle)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, &ConflictError{Resource: "reaction", ID: threadID}
	}
	if err != nil {
		return nil, err
	}

	metrics.ReactionsToggled.WithLabelValues(action).Inc()
	counts, err := s.afterChange(ctx, threadID, segmentID)
	if err != nil {
		return nil, err
	}
	return &ReactionState{Active: active, Counts: counts}, nil
}

// RemoveReaction deletes the caller's reaction of that type. Removing a
// reaction that does not exist is not an error.
func (s *ReactionService) RemoveReaction(ctx context.Context, threadID, reactionType string, segmentID *string) (*ReactionState, error) {
	if err := validateReactionType(reactionType); err != nil {
		return nil, err
	}
	userID, err := requireUser(ctx, "react")
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).
		Where("thread_id = ? AND target = ? AND user_id = ? AND type = ?",
			threadID, models.ReactionTarget(segmentID), userID, reactionType).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return nil, res.Error
	}

	var counts ReactionCounts
	if res.RowsAffected > 0 {
		metrics.ReactionsToggled.WithLabelValues("remove").Inc()
		counts, err = s.afterChange(ctx, threadID, segmentID)
	} else {
		counts, err = s.GetReactionCounts(ctx, threadID, segmentID)
	}
	if err != nil {
		return nil, err
	}
	return &ReactionState{Counts: counts}, nil
}

// afterChange recomputes the counts of a target and pushes the snapshot to
// listeners.
func (s *ReactionService) afterChange(ctx context.Context, threadID string, segmentID *string) (ReactionCounts, error) {
	counts, err := s.GetReactionCounts(ctx, threadID, segmentID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(counts)
	if err == nil {
		err = s.broker.Publish(ctx, ReactionChannel(threadID, segmentID), payload)
	}
	if err != nil {
		s.log.Warn("reaction notify failed", "threadID", threadID, "error", err)
	}
	if s.ranking != nil {
		s.ranking.ScheduleUpdate(threadID)
	}
	return counts, nil
}

// GetReactionCounts counts reactions on one target. A nil segmentID means
// the thread itself.
func (s *ReactionService) GetReactionCounts(ctx context.Context, threadID string, segmentID *string) (ReactionCounts, error) {
	return countReactions(s.db.WithContext(ctx), threadID, models.ReactionTarget(segmentID))
}

func (s *ReactionService) GetUserReactions(ctx context.Context, threadID string, segmentID *string) ([]string, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return []string{}, nil
	}
	types := []string{}
	err := s.db.WithContext(ctx).Model(&models.Reaction{}).
		Where("thread_id = ? AND target = ? AND user_id = ?", threadID, models.ReactionTarget(segmentID), userID).
		Pluck("type", &types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

// GetReactionUsers lists who reacted with a type, oldest first.
func (s *ReactionService) GetReactionUsers(ctx context.Context, threadID, reactionType string, segmentID *string) ([]ReactionUser, error) {
	if err := validateReactionType(reactionType); err != nil {
		return nil, err
	}
	if _, err := s.threads.findReadable(ctx, threadID); err != nil {
		return nil, err
	}
	var rows []models.Reaction
	err := s.db.WithContext(ctx).
		Where("thread_id = ? AND target = ? AND type = ?", threadID, models.ReactionTarget(segmentID), reactionType).
		Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	names := s.profiles.DisplayNames(ctx, ids)
	out := make([]ReactionUser, len(rows))
	for i, r := range rows {
		out[i] = ReactionUser{UserID: r.UserID, Name: names[r.UserID], CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// Subscribe delivers the recomputed counts of a target after every change.
// Slow listeners only ever miss intermediate snapshots, never the latest.
// The returned func stops the subscription and closes the channel.
func (s *ReactionService) Subscribe(threadID string, segmentID *string) (<-chan ReactionCounts, func()) {
	raw, cancel := s.broker.Subscribe(ReactionChannel(threadID, segmentID))
	out := make(chan ReactionCounts, 1)
	go func() {
		defer close(out)
		for payload := range raw {
			var counts ReactionCounts
			if err := json.Unmarshal(payload, &counts); err != nil {
				s.log.Warn("bad reaction payload", "error", err)
				continue
			}
			latest(out, counts)
		}
	}()
	return out, cancel
}

func normalizeSegmentID(segmentID *string) *string {
	if segmentID == nil || *segmentID == "" {
		return nil
	}
	id := *segmentID
	return &id
}

func countReactions(db *gorm.DB, threadID, target string) (ReactionCounts, error) {
	var rows []struct {
		Type  string
		Count int
	}
	err := db.Model(&models.Reaction{}).
		Select("type, COUNT(*) AS count").
		Where("thread_id = ? AND target = ?", threadID, target).
		Group("type").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := NewReactionCounts()
	for _, r := range rows {
		if _, ok := counts[r.Type]; ok {
			counts[r.Type] = r.Count
		}
	}
	return counts, nil
}

// reactionTotals counts every reaction of each thread, thread and segment
// level alike.
func reactionTotals(db *gorm.DB, threadIDs []string) (map[string]ReactionCounts, error) {
	out := make(map[string]ReactionCounts, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ThreadID string
		Type     string
		Count    int
	}
	err := db.Model(&models.Reaction{}).
		Select("thread_id, type, COUNT(*) AS count").
		Where("thread_id IN ?", threadIDs).
		Group("thread_id, type").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		c, ok := out[r.ThreadID]
		if !ok {
			c = NewReactionCounts()
			out[r.ThreadID] = c
		}
		if _, known := c[r.Type]; known {
			c[r.Type] = r.Count
		}
	}
	return out, nil
}
