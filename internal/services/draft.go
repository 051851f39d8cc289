package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"threadspire/internal/logger"
	"threadspire/internal/metrics"
	"threadspire/internal/models"
	"threadspire/internal/utils"

	"gorm.io/gorm"
)

const (
	BlockText     = "text"
	BlockMarkdown = "markdown"
)

type DraftBlock struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// DraftView is a draft with its content normalized to blocks.
type DraftView struct {
	models.Draft
	Content []DraftBlock `json:"content"`
}

// NormalizeDraftContent turns stored draft content into ordered blocks. It
// accepts every encoding drafts were ever saved with: a JSON array, a JSON
// encoded string holding an array, a lone object or a plain string. It
// never fails; anything unparseable becomes a single block.
func NormalizeDraftContent(stored string) []DraftBlock {
	trimmed := strings.TrimSpace(stored)
	if trimmed == "" {
		return []DraftBlock{}
	}

	var value interface{}
	if err := decodeJSON(trimmed, &value); err != nil {
		return []DraftBlock{{Content: stored, Type: BlockText}}
	}

	// A JSON string may itself be stringified JSON; unwrap one level.
	if s, ok := value.(string); ok {
		var inner interface{}
		if err := decodeJSON(strings.TrimSpace(s), &inner); err != nil {
			return []DraftBlock{{Content: s, Type: BlockText}}
		}
		if _, isString := inner.(string); isString {
			return []DraftBlock{{Content: s, Type: BlockText}}
		}
		value = inner
	}

	switch v := value.(type) {
	case nil:
		return []DraftBlock{}
	case []interface{}:
		blocks := make([]DraftBlock, 0, len(v))
		for _, item := range v {
			blocks = append(blocks, toBlock(item))
		}
		return blocks
	default:
		return []DraftBlock{toBlock(v)}
	}
}

func decodeJSON(s string, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return &json.SyntaxError{}
	}
	return nil
}

func toBlock(item interface{}) DraftBlock {
	switch v := item.(type) {
	case string:
		return DraftBlock{Content: v, Type: BlockText}
	case map[string]interface{}:
		b := DraftBlock{Type: BlockText}
		if t, ok := v["type"].(string); ok && t != "" {
			b.Type = t
		}
		if c, ok := v["content"]; ok {
			b.Content = stringify(c)
		} else {
			b.Content = stringify(v)
		}
		return b
	default:
		return DraftBlock{Content: stringify(v), Type: BlockText}
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// storedContent keeps the given content verbatim; empty means no blocks.
func storedContent(content json.RawMessage) string {
	if len(bytes.TrimSpace(content)) == 0 {
		return "[]"
	}
	return string(content)
}

type DraftService struct {
	db      *gorm.DB
	log     *logger.Logger
	threads *ThreadService
}

func view(d models.Draft) *DraftView {
	return &DraftView{Draft: d, Content: NormalizeDraftContent(d.Content)}
}

func (s *DraftService) CreateDraft(ctx context.Context, title string, content json.RawMessage) (*DraftView, error) {
	userID, err := requireUser(ctx, "create a draft")
	if err != nil {
		return nil, err
	}
	d := models.Draft{UserID: userID, Title: strings.TrimSpace(title), Content: storedContent(content)}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, err
	}
	return view(d), nil
}

// UpdateDraft changes the title and/or content; nil leaves a field as is.
func (s *DraftService) UpdateDraft(ctx context.Context, id string, title *string, content json.RawMessage) (*DraftView, error) {
	d, err := s.owned(ctx, id, "update this draft")
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if title != nil {
		updates["title"] = strings.TrimSpace(*title)
	}
	if content != nil {
		updates["content"] = storedContent(content)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(d).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	if err := s.db.WithContext(ctx).First(d, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "draft", id)
	}
	return view(*d), nil
}

func (s *DraftService) GetDraftByID(ctx context.Context, id string) (*DraftView, error) {
	d, err := s.owned(ctx, id, "read this draft")
	if err != nil {
		return nil, err
	}
	return view(*d), nil
}

func (s *DraftService) ListDrafts(ctx context.Context) ([]DraftView, error) {
	userID, err := requireUser(ctx, "list drafts")
	if err != nil {
		return nil, err
	}
	var rows []models.Draft
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]DraftView, len(rows))
	for i, d := range rows {
		out[i] = *view(d)
	}
	return out, nil
}

func (s *DraftService) DeleteDraft(ctx context.Context, id string) error {
	d, err := s.owned(ctx, id, "delete this draft")
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(d).Error
}

func (s *DraftService) owned(ctx context.Context, id, action string) (*models.Draft, error) {
	userID, err := requireUser(ctx, action)
	if err != nil {
		return nil, err
	}
	var d models.Draft
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "draft", id)
	}
	if d.UserID != userID {
		return nil, &PermissionError{Action: action}
	}
	return &d, nil
}

// publishableSegments renders markdown blocks and drops blank ones.
func publishableSegments(blocks []DraftBlock) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		content := b.Content
		if b.Type == BlockMarkdown {
			content = utils.RenderMarkdown(content)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		out = append(out, content)
	}
	return out
}

// PublishDraft converts a draft into a published thread. The thread, its
// segments and the draft deletion commit together: if any step fails the
// draft is left untouched and no thread exists.
func (s *DraftService) PublishDraft(ctx context.Context, id string) (*ThreadDetail, error) {
	d, err := s.owned(ctx, id, "publish this draft")
	if err != nil {
		return nil, err
	}
	if err := validateTitle(d.Title); err != nil {
		return nil, err
	}
	segments := publishableSegments(NormalizeDraftContent(d.Content))
	if len(segments) == 0 {
		return nil, &ValidationError{Field: "content", Message: "draft has no content to publish"}
	}

	thread := models.Thread{
		UserID:      d.UserID,
		Title:       d.Title,
		IsPublished: true,
		Snippet:     snippetOf(segments),
		CoverImage:  coverOf(nil, segments),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&thread).Error; err != nil {
			return atStep("thread", err)
		}
		if err := insertSegments(tx, thread.ID, segments); err != nil {
			return atStep("segments", err)
		}
		if err := ensureAnalytics(tx, thread.ID); err != nil {
			return atStep("analytics", err)
		}
		res := tx.Delete(&models.Draft{}, "id = ?", d.ID)
		if res.Error != nil {
			return atStep("draft", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Resource: "draft", ID: d.ID}
		}
		return nil
	})
	if err != nil {
		return nil, partialFailure("publishDraft", err)
	}

	metrics.ThreadsCreated.WithLabelValues("draft").Inc()
	s.threads.afterWrite(ctx, thread.ID)
	return s.threads.load(ctx, thread.ID)
}
