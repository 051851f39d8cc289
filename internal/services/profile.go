package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"threadspire/internal/logger"
	"threadspire/internal/models"
	"threadspire/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	UnknownCreator = "Unknown Creator"
	AnonymousName  = "Anonymous"
)

type ProfileService struct {
	db    *gorm.DB
	log   *logger.Logger
	names *utils.TTLCache[string]
}

type ProfileInput struct {
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio"`
}

// Upsert sets the public profile of the current user.
func (s *ProfileService) Upsert(ctx context.Context, in ProfileInput) (*models.Profile, error) {
	userID, err := requireUser(ctx, "update a profile")
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, &ValidationError{Field: "display_name", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > 80 {
		return nil, &ValidationError{Field: "display_name", Message: "must be at most 80 characters"}
	}
	avatar := strings.TrimSpace(in.Avatar)
	if avatar == "" {
		avatar = utils.DefaultAvatar(userID)
	}

	p := models.Profile{
		UserID:      userID,
		DisplayName: name,
		Avatar:      avatar,
		Bio:         utils.Truncate(strings.TrimSpace(in.Bio), 200),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar", "bio", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return nil, err
	}
	s.names.Set(userID, name)
	return &p, nil
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "profile", userID)
	}
	return &p, nil
}

// DisplayName never fails; unresolved ids read as UnknownCreator.
func (s *ProfileService) DisplayName(ctx context.Context, userID string) string {
	return s.DisplayNames(ctx, []string{userID})[userID]
}

func (s *ProfileService) DisplayNames(ctx context.Context, userIDs []string) map[string]string {
	out := make(map[string]string, len(userIDs))
	var missing []string
	for _, id := range userIDs {
		if _, done := out[id]; done {
			continue
		}
		if name, ok := s.names.Get(id); ok {
			out[id] = name
			continue
		}
		out[id] = UnknownCreator
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out
	}

	var profiles []models.Profile
	err := s.db.WithContext(ctx).Where("user_id IN ?", missing).Find(&profiles).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn("profile lookup failed", "error", err)
		return out
	}
	for _, p := range profiles {
		out[p.UserID] = p.DisplayName
		s.names.Set(p.UserID, p.DisplayName)
	}
	return out
}
