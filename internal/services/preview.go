package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"threadspire/internal/auth"
)

type PreviewSegment struct {
	Content    string `json:"content"`
	OrderIndex int    `json:"order_index"`
}

// ThreadPreview is an unsaved thread shaped like a published one.
type ThreadPreview struct {
	Title          string           `json:"title"`
	Author         string           `json:"author"`
	Snippet        string           `json:"snippet"`
	CoverImage     *string          `json:"cover_image"`
	Segments       []PreviewSegment `json:"segments"`
	Tags           []string         `json:"tags"`
	ReactionCounts ReactionCounts   `json:"reaction_counts"`
	CreatedAt      time.Time        `json:"created_at"`
}

type PreviewService struct {
	profiles *ProfileService
	drafts   *DraftService
}

// GeneratePreview validates the input like CreateThread and returns what
// the thread would look like, without persisting anything.
func (s *PreviewService) GeneratePreview(ctx context.Context, in CreateThreadInput) (*ThreadPreview, error) {
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validateSegments(in.Segments); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	author := AnonymousName
	if userID, ok := auth.UserID(ctx); ok {
		author = s.profiles.DisplayName(ctx, userID)
	}
	p := &ThreadPreview{
		Title:          strings.TrimSpace(in.Title),
		Author:         author,
		Snippet:        *snippetOf(in.Segments),
		CoverImage:     coverOf(in.CoverImage, in.Segments),
		Segments:       make([]PreviewSegment, len(in.Segments)),
		Tags:           tags,
		ReactionCounts: NewReactionCounts(),
		CreatedAt:      time.Now(),
	}
	for i, c := range in.Segments {
		p.Segments[i] = PreviewSegment{Content: c, OrderIndex: i}
	}
	return p, nil
}

// SavePreviewAsDraft stores the previewed segments as a draft.
func (s *PreviewService) SavePreviewAsDraft(ctx context.Context, in CreateThreadInput) (*DraftView, error) {
	type block struct {
		Content    string `json:"content"`
		Type       string `json:"type"`
		OrderIndex int    `json:"order_index"`
	}
	blocks := make([]block, 0, len(in.Segments))
	for i, c := range in.Segments {
		blocks = append(blocks, block{Content: c, Type: BlockText, OrderIndex: i})
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	return s.drafts.CreateDraft(ctx, in.Title, raw)
}
