package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"threadspire/internal/auth"
	"threadspire/internal/logger"
	"threadspire/internal/models"

	"gorm.io/gorm"
)

type CollectionEntry struct {
	ThreadID    string        `json:"thread_id"`
	AddedAt     time.Time     `json:"added_at"`
	Thread      *ThreadDetail `json:"thread,omitempty"`
	Placeholder bool          `json:"placeholder"`
	Reason      string        `json:"reason,omitempty"`
}

type CollectionWithThreads struct {
	models.Collection
	Threads []CollectionEntry `json:"threads"`
}

type CollectionUpdate struct {
	Name      *string `json:"name"`
	IsPrivate *bool   `json:"is_private"`
}

// ThreadReader resolves a thread for display. Collections only hold ids.
type ThreadReader interface {
	GetThreadByID(ctx context.Context, id string) (*ThreadDetail, error)
}

type CollectionService struct {
	db      *gorm.DB
	log     *logger.Logger
	threads ThreadReader
	broker  Broker
}

func validateCollectionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if len([]rune(strings.TrimSpace(name))) > 100 {
		return &ValidationError{Field: "name", Message: "must be at most 100 characters"}
	}
	return nil
}

func (s *CollectionService) CreateCollection(ctx context.Context, name string, isPrivate bool) (*models.Collection, error) {
	userID, err := requireUser(ctx, "create a collection")
	if err != nil {
		return nil, err
	}
	if err := validateCollectionName(name); err != nil {
		return nil, err
	}
	c := models.Collection{UserID: userID, Name: strings.TrimSpace(name), IsPrivate: isPrivate}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	s.notify(ctx, userID, CollectionEvent{Type: CollectionCreated, CollectionID: c.ID, Collection: &c})
	return &c, nil
}

func (s *CollectionService) UpdateCollection(ctx context.Context, id string, in CollectionUpdate) (*models.Collection, error) {
	c, err := s.owned(ctx, id, "update this collection")
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		if err := validateCollectionName(*in.Name); err != nil {
			return nil, err
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.IsPrivate != nil {
		updates["is_private"] = *in.IsPrivate
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(c).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	if err := s.db.WithContext(ctx).First(c, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "collection", id)
	}
	if len(updates) > 0 {
		s.notify(ctx, c.UserID, CollectionEvent{Type: CollectionUpdated, CollectionID: c.ID, Collection: c})
	}
	return c, nil
}

// DeleteCollection removes the collection and its memberships.
func (s *CollectionService) DeleteCollection(ctx context.Context, id string) error {
	c, err := s.owned(ctx, id, "delete this collection")
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", c.ID).Delete(&models.CollectionThread{}).Error; err != nil {
			return err
		}
		return tx.Delete(c).Error
	})
	if err != nil {
		return err
	}
	s.notify(ctx, c.UserID, CollectionEvent{Type: CollectionDeleted, CollectionID: c.ID})
	return nil
}

// AddThreadToCollection is idempotent.
func (s *CollectionService) AddThreadToCollection(ctx context.Context, collectionID, threadID string) error {
	c, err := s.owned(ctx, collectionID, "modify this collection")
	if err != nil {
		return err
	}
	if strings.TrimSpace(threadID) == "" {
		return &ValidationError{Field: "thread_id", Message: "must not be empty"}
	}
	res := s.db.WithContext(ctx).Clauses(onConflictDoNothing).
		Create(&models.CollectionThread{CollectionID: collectionID, ThreadID: threadID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.notify(ctx, c.UserID, CollectionEvent{Type: CollectionThreadAdded, CollectionID: collectionID, ThreadID: threadID})
	}
	return nil
}

// RemoveThreadFromCollection is a no-op when the thread is not a member.
func (s *CollectionService) RemoveThreadFromCollection(ctx context.Context, collectionID, threadID string) error {
	c, err := s.owned(ctx, collectionID, "modify this collection")
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Where("collection_id = ? AND thread_id = ?", collectionID, threadID).
		Delete(&models.CollectionThread{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.notify(ctx, c.UserID, CollectionEvent{Type: CollectionThreadRemoved, CollectionID: collectionID, ThreadID: threadID})
	}
	return nil
}

// GetCollection resolves every member thread. Members that cannot be read
// are returned as placeholders instead of failing the whole collection.
func (s *CollectionService) GetCollection(ctx context.Context, id string) (*CollectionWithThreads, error) {
	var c models.Collection
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "collection", id)
	}
	if userID, _ := auth.UserID(ctx); c.IsPrivate && userID != c.UserID {
		return nil, &PrivateAccessError{Resource: "collection", ID: id}
	}

	var members []models.CollectionThread
	err := s.db.WithContext(ctx).Where("collection_id = ?", id).
		Order("created_at").Order("thread_id").Find(&members).Error
	if err != nil {
		return nil, err
	}

	out := &CollectionWithThreads{Collection: c, Threads: make([]CollectionEntry, 0, len(members))}
	for _, m := range members {
		entry := CollectionEntry{ThreadID: m.ThreadID, AddedAt: m.CreatedAt}
		t, err := s.threads.GetThreadByID(ctx, m.ThreadID)
		if err != nil {
			entry.Placeholder = true
			entry.Reason = placeholderReason(err)
			if entry.Reason == "unavailable" {
				s.log.Warn("collection member lookup failed", "collectionID", id, "threadID", m.ThreadID, "error", err)
			}
		} else {
			entry.Thread = t
		}
		out.Threads = append(out.Threads, entry)
	}
	return out, nil
}

func placeholderReason(err error) string {
	var (
		nf *NotFoundError
		pa *PrivateAccessError
	)
	switch {
	case errors.As(err, &nf):
		return "deleted"
	case errors.As(err, &pa):
		return "private"
	default:
		return "unavailable"
	}
}

// ListUserCollections lists a user's collections; other callers only see
// the public ones.
func (s *CollectionService) ListUserCollections(ctx context.Context, ownerID string) ([]models.Collection, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if caller, _ := auth.UserID(ctx); caller != ownerID {
		q = q.Where("is_private = ?", false)
	}
	out := []models.Collection{}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CollectionService) IsThreadInCollection(ctx context.Context, collectionID, threadID string) (bool, error) {
	if _, err := s.owned(ctx, collectionID, "read this collection"); err != nil {
		return false, err
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.CollectionThread{}).
		Where("collection_id = ? AND thread_id = ?", collectionID, threadID).Count(&n).Error
	return n > 0, err
}

func (s *CollectionService) owned(ctx context.Context, id, action string) (*models.Collection, error) {
	userID, err := requireUser(ctx, action)
	if err != nil {
		return nil, err
	}
	var c models.Collection
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "collection", id)
	}
	if c.UserID != userID {
		return nil, &PermissionError{Action: action}
	}
	return &c, nil
}
