package services

import (
	"context"
	"strings"

	"threadspire/internal/logger"
	"threadspire/internal/models"
	"threadspire/internal/search"
	"threadspire/internal/utils"

	"gorm.io/gorm"
)

// SearchEngine is a full-text engine such as search.Meili.
type SearchEngine interface {
	Healthy() bool
	Search(query string, limit int) ([]string, error)
	Index(doc search.Document) error
	Delete(id string) error
}

// SearchService queries the engine while it is healthy and falls back to a
// database scan of titles and snippets otherwise. Only published public
// threads are indexed.
type SearchService struct {
	db      *gorm.DB
	engine  SearchEngine
	log     *logger.Logger
	threads *ThreadService
}

func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]ThreadDetail, error) {
	query = strings.TrimSpace(query)
	limit = clampLimit(limit)
	if query == "" {
		return []ThreadDetail{}, nil
	}

	if s.engine != nil && s.engine.Healthy() {
		ids, err := s.engine.Search(query, limit)
		if err == nil {
			details, err := s.threads.hydrateIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			return filterSearchable(details), nil
		}
		s.log.Warn("search engine failed, falling back to database", "error", err)
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var threads []models.Thread
	err := s.db.WithContext(ctx).
		Where("is_published = ? AND is_private = ?", true, false).
		Where("LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(snippet) LIKE ? ESCAPE '\\'", pattern, pattern).
		Order("created_at DESC").Limit(limit).
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return s.threads.hydrate(ctx, threads)
}

// filterSearchable drops results that changed visibility after indexing.
func filterSearchable(in []ThreadDetail) []ThreadDetail {
	out := in[:0]
	for _, d := range in {
		if d.IsPublished && !d.IsPrivate {
			out = append(out, d)
		}
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// IndexThread pushes a thread to the engine, or removes it when it is not
// searchable. Fire and forget.
func (s *SearchService) IndexThread(t *ThreadDetail) {
	if s.engine == nil || !s.engine.Healthy() {
		return
	}
	if !t.IsPublished || t.IsPrivate {
		s.RemoveThread(t.ID)
		return
	}
	doc := ToDocument(t)
	go func() {
		if err := s.engine.Index(doc); err != nil {
			s.log.Warn("index thread failed", "threadID", doc.ID, "error", err)
		}
	}()
}

func (s *SearchService) RemoveThread(id string) {
	if s.engine == nil || !s.engine.Healthy() {
		return
	}
	go func() {
		if err := s.engine.Delete(id); err != nil {
			s.log.Warn("delete thread from index failed", "threadID", id, "error", err)
		}
	}()
}

func ToDocument(t *ThreadDetail) search.Document {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		parts = append(parts, utils.PlainText(seg.Content))
	}
	doc := search.Document{
		ID:        t.ID,
		Title:     t.Title,
		Body:      strings.Join(parts, "\n"),
		Tags:      t.Tags,
		Author:    t.Author,
		CreatedAt: t.CreatedAt.Unix(),
	}
	if t.Snippet != nil {
		doc.Snippet = *t.Snippet
	}
	return doc
}

// Reindex pushes every searchable thread to the engine in batches.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	if s.engine == nil || !s.engine.Healthy() {
		return 0, nil
	}
	total := 0
	var batch []models.Thread
	err := s.db.WithContext(ctx).Where("is_published = ? AND is_private = ?", true, false).
		FindInBatches(&batch, 100, func(tx *gorm.DB, _ int) error {
			details, err := s.threads.hydrate(ctx, batch)
			if err != nil {
				return err
			}
			for i := range details {
				if err := s.engine.Index(ToDocument(&details[i])); err != nil {
					return err
				}
				total++
			}
			return nil
		}).Error
	return total, err
}
