package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"threadspire/internal/auth"
	"threadspire/internal/logger"
	"threadspire/internal/metrics"
	"threadspire/internal/models"
	"threadspire/internal/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ThreadDetail is a thread with everything a reader needs resolved.
type ThreadDetail struct {
	models.Thread
	Author         string           `json:"author"`
	Segments       []models.Segment `json:"segments"`
	Tags           []string         `json:"tags"`
	ReactionCounts ReactionCounts   `json:"reaction_counts"`
	Bookmarks      int64            `json:"bookmarks"`
}

type ThreadPage struct {
	Threads []ThreadDetail `json:"threads"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type CreateThreadInput struct {
	Title            string   `json:"title"`
	Segments         []string `json:"segments"`
	Tags             []string `json:"tags"`
	CoverImage       *string  `json:"cover_image"`
	Publish          bool     `json:"publish"`
	Private          bool     `json:"private"`
	OriginalThreadID *string  `json:"original_thread_id"`
}

// UpdateThreadInput leaves a field untouched when it is nil. An empty, non
// nil Tags slice clears the tags. Version, when set, must match the stored
// version.
type UpdateThreadInput struct {
	Title       *string  `json:"title"`
	Segments    []string `json:"segments"`
	Tags        []string `json:"tags"`
	CoverImage  *string  `json:"cover_image"`
	IsPublished *bool    `json:"is_published"`
	IsPrivate   *bool    `json:"is_private"`
	Version     *int     `json:"version"`
}

type ThreadFilter struct {
	Page          int
	Limit         int
	SortBy        string
	SortOrder     string
	Tags          []string
	UserID        string
	OnlyPublished bool
}

type LineageNode struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	UserID string `json:"user_id"`
	Author string `json:"author"`
}

var sortColumns = map[string]string{
	"created_at": "threads.created_at",
	"updated_at": "threads.updated_at",
	"title":      "threads.title",
	"fork_count": "threads.fork_count",
}

type ThreadService struct {
	db       *gorm.DB
	log      *logger.Logger
	tags     *tagResolver
	profiles *ProfileService
	ranking  ScoreScheduler
	search   *SearchService
	broker   Broker
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	return nil
}

func validateSegments(segments []string) error {
	if len(segments) == 0 {
		return &ValidationError{Field: "segments", Message: "at least one segment is required"}
	}
	for i, s := range segments {
		if strings.TrimSpace(s) == "" {
			return &ValidationError{Field: "segments", Message: fmt.Sprintf("segment %d is empty", i)}
		}
	}
	return nil
}

func snippetOf(segments []string) *string {
	if len(segments) == 0 {
		return nil
	}
	s := utils.Snippet(segments[0])
	return &s
}

// coverOf keeps an explicit cover and otherwise falls back to the first
// image of the first segment.
func coverOf(cover *string, segments []string) *string {
	if cover != nil && strings.TrimSpace(*cover) != "" {
		c := strings.TrimSpace(*cover)
		return &c
	}
	if len(segments) == 0 {
		return nil
	}
	if src := utils.FirstImage(segments[0]); src != "" {
		return &src
	}
	return nil
}

func insertSegments(tx *gorm.DB, threadID string, contents []string) error {
	if len(contents) == 0 {
		return nil
	}
	rows := make([]models.Segment, len(contents))
	for i, c := range contents {
		rows[i] = models.Segment{ThreadID: threadID, Content: c, OrderIndex: i}
	}
	return tx.Create(&rows).Error
}

func ensureAnalytics(tx *gorm.DB, threadID string) error {
	return tx.Clauses(onConflictDoNothing).Create(&models.ThreadAnalytics{ThreadID: threadID}).Error
}

// CreateThread persists a thread with its segments, tags and a zeroed
// analytics row in one transaction.
func (s *ThreadService) CreateThread(ctx context.Context, in CreateThreadInput) (*ThreadDetail, error) {
	userID, err := requireUser(ctx, "create a thread")
	if err != nil {
		return nil, err
	}
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

	thread := models.Thread{
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		IsPublished: in.Publish,
		IsPrivate:   in.Private,
		CoverImage:  coverOf(in.CoverImage, in.Segments),
		Snippet:     snippetOf(in.Segments),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.OriginalThreadID != nil && *in.OriginalThreadID != "" {
			if err := checkLineage(tx, *in.OriginalThreadID); err != nil {
				return err
			}
			orig := *in.OriginalThreadID
			thread.OriginalThreadID = &orig
		}
		if err := tx.Create(&thread).Error; err != nil {
			return atStep("thread", err)
		}
		if err := insertSegments(tx, thread.ID, in.Segments); err != nil {
			return atStep("segments", err)
		}
		if err := s.tags.link(tx, thread.ID, tags); err != nil {
			return atStep("tags", err)
		}
		return atStep("analytics", ensureAnalytics(tx, thread.ID))
	})
	if err != nil {
		return nil, partialFailure("createThread", err)
	}

	metrics.ThreadsCreated.WithLabelValues("direct").Inc()
	s.afterWrite(ctx, thread.ID)
	return s.load(ctx, thread.ID)
}

// checkLineage verifies that parentID exists and that walking its ancestor
// chain terminates. A new thread can never be its own ancestor, so this only
// trips on corrupted data.
func checkLineage(tx *gorm.DB, parentID string) error {
	seen := map[string]bool{}
	id := parentID
	for id != "" {
		if seen[id] {
			return &ValidationError{Field: "original_thread_id", Message: "lineage of " + parentID + " contains a cycle"}
		}
		seen[id] = true
		var t models.Thread
		if err := tx.Select("id", "original_thread_id").First(&t, "id = ?", id).Error; err != nil {
			if id == parentID {
				return notFoundOr(err, "thread", id)
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if t.OriginalThreadID == nil {
			return nil
		}
		id = *t.OriginalThreadID
	}
	return nil
}

// canRead applies the visibility rules: private threads need an
// authenticated caller and unpublished threads are visible to their owner
// only.
func canRead(ctx context.Context, t *models.Thread) error {
	userID, authed := auth.UserID(ctx)
	if t.IsPrivate && !authed {
		return &PrivateAccessError{Resource: "thread", ID: t.ID}
	}
	if !t.IsPublished && userID != t.UserID {
		return &NotFoundError{Resource: "thread", ID: t.ID}
	}
	return nil
}

func (s *ThreadService) find(ctx context.Context, id string) (*models.Thread, error) {
	var t models.Thread
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "thread", id)
	}
	return &t, nil
}

// findReadable loads a thread and applies the visibility rules.
func (s *ThreadService) findReadable(ctx context.Context, id string) (*models.Thread, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canRead(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CheckReadable reports whether the caller may read the thread.
func (s *ThreadService) CheckReadable(ctx context.Context, id string) error {
	_, err := s.findReadable(ctx, id)
	return err
}

// GetThreadByID returns the thread with ordered segments, tag names and
// thread level reaction counts. It does not record a view.
func (s *ThreadService) GetThreadByID(ctx context.Context, id string) (*ThreadDetail, error) {
	if _, err := s.findReadable(ctx, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *ThreadService) load(ctx context.Context, id string) (*ThreadDetail, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	detail := ThreadDetail{Thread: *t, Tags: []string{}}
	if err := db.Where("thread_id = ?", id).Order("order_index").Find(&detail.Segments).Error; err != nil {
		return nil, err
	}
	if tags, err := tagNamesByThread(db, []string{id}); err != nil {
		s.log.Warn("tag resolution failed", "threadID", id, "error", err)
	} else if names := tags[id]; names != nil {
		detail.Tags = names
	}
	if detail.ReactionCounts, err = countReactions(db, id, models.ThreadTarget); err != nil {
		return nil, err
	}
	if err := db.Model(&models.Bookmark{}).Where("thread_id = ?", id).Count(&detail.Bookmarks).Error; err != nil {
		return nil, err
	}
	detail.Author = s.profiles.DisplayName(ctx, t.UserID)
	return &detail, nil
}

// UpdateThread applies a partial update. Segments and tags, when supplied,
// are replaced wholesale inside the same transaction as the version bump.
func (s *ThreadService) UpdateThread(ctx context.Context, id string, in UpdateThreadInput) (*ThreadDetail, error) {
	userID, err := requireUser(ctx, "update a thread")
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		if err := validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Segments != nil {
		if err := validateSegments(in.Segments); err != nil {
			return nil, err
		}
	}
	var tags []string
	if in.Tags != nil {
		if tags, err = normalizeTags(in.Tags); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Thread
		if err := tx.First(&t, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "thread", id)
		}
		if t.UserID != userID {
			return &PermissionError{Action: "update this thread"}
		}
		if in.Version != nil && *in.Version != t.Version {
			return &ConflictError{Resource: "thread", ID: id, Current: t.Version}
		}

		updates := map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}
		if in.Title != nil {
			updates["title"] = strings.TrimSpace(*in.Title)
		}
		if in.CoverImage != nil {
			updates["cover_image"] = coverOf(in.CoverImage, nil)
		}
		if in.IsPublished != nil {
			updates["is_published"] = *in.IsPublished
		}
		if in.IsPrivate != nil {
			updates["is_private"] = *in.IsPrivate
		}
		if in.Segments != nil {
			updates["snippet"] = snippetOf(in.Segments)
		}

		res := tx.Model(&models.Thread{}).Where("id = ? AND version = ?", id, t.Version).Updates(updates)
		if res.Error != nil {
			return atStep("thread", res.Error)
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Resource: "thread", ID: id, Current: t.Version + 1}
		}

		if in.Segments != nil {
			if err := tx.Where("thread_id = ?", id).Delete(&models.Segment{}).Error; err != nil {
				return atStep("segments", err)
			}
			if err := insertSegments(tx, id, in.Segments); err != nil {
				return atStep("segments", err)
			}
			// Replaced segments get new ids; their reactions go with them.
			err := tx.Where("thread_id = ? AND target <> ?", id, models.ThreadTarget).Delete(&models.Reaction{}).Error
			if err != nil {
				return atStep("reactions", err)
			}
		}
		if in.Tags != nil {
			if err := s.tags.replace(tx, id, tags); err != nil {
				return atStep("tags", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, partialFailure("updateThread", err)
	}

	s.afterWrite(ctx, id)
	return s.load(ctx, id)
}

// DeleteThread removes the thread and every row that references it. Forks
// of the thread survive with their lineage pointer cleared; interaction
// logs are kept.
func (s *ThreadService) DeleteThread(ctx context.Context, id string) error {
	userID, err := requireUser(ctx, "delete a thread")
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Thread
		if err := tx.Select("id", "user_id").First(&t, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "thread", id)
		}
		if t.UserID != userID {
			return &PermissionError{Action: "delete this thread"}
		}
		steps := []struct {
			name  string
			model interface{}
		}{
			{"segments", &models.Segment{}},
			{"tags", &models.ThreadTag{}},
			{"reactions", &models.Reaction{}},
			{"analytics", &models.ThreadAnalytics{}},
			{"collections", &models.CollectionThread{}},
			{"bookmarks", &models.Bookmark{}},
		}
		for _, step := range steps {
			if err := tx.Where("thread_id = ?", id).Delete(step.model).Error; err != nil {
				return atStep(step.name, err)
			}
		}
		err := tx.Model(&models.Thread{}).Where("original_thread_id = ?", id).
			UpdateColumn("original_thread_id", nil).Error
		if err != nil {
			return atStep("lineage", err)
		}
		return atStep("thread", tx.Delete(&models.Thread{}, "id = ?", id).Error)
	})
	if err != nil {
		return partialFailure("deleteThread", err)
	}
	s.search.RemoveThread(id)
	s.notify(ctx, id, ThreadDeleted)
	return nil
}

func normalizeFilter(f ThreadFilter) ThreadFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		f.SortBy = "created_at"
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
	return f
}

// visible restricts a thread query to what the caller may list.
func visible(ctx context.Context, q *gorm.DB, onlyPublished bool) *gorm.DB {
	userID, authed := auth.UserID(ctx)
	if onlyPublished || !authed {
		q = q.Where("threads.is_published = ?", true)
	} else {
		q = q.Where("threads.is_published = ? OR threads.user_id = ?", true, userID)
	}
	if !authed {
		q = q.Where("threads.is_private = ?", false)
	}
	return q
}

// GetThreads lists one page of threads, annotated with bookmark counts and
// reaction totals.
func (s *ThreadService) GetThreads(ctx context.Context, f ThreadFilter) (*ThreadPage, error) {
	f = normalizeFilter(f)
	tags, err := normalizeTags(f.Tags)
	if err != nil {
		return nil, err
	}

	query := func() *gorm.DB {
		q := visible(ctx, s.db.WithContext(ctx).Model(&models.Thread{}), f.OnlyPublished)
		if f.UserID != "" {
			q = q.Where("threads.user_id = ?", f.UserID)
		}
		if len(tags) > 0 {
			sub := s.db.Table("thread_tags").Select("thread_tags.thread_id").
				Joins("JOIN tags ON tags.id = thread_tags.tag_id").
				Where("tags.name IN ?", tags)
			q = q.Where("threads.id IN (?)", sub)
		}
		return q
	}

	page := &ThreadPage{Page: f.Page, Limit: f.Limit, Threads: []ThreadDetail{}}
	if err := query().Count(&page.Total).Error; err != nil {
		return nil, err
	}

	var threads []models.Thread
	err = query().Order(sortColumns[f.SortBy] + " " + f.SortOrder).Order("threads.id").
		Offset((f.Page - 1) * f.Limit).Limit(f.Limit).
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	if page.Threads, err = s.hydrate(ctx, threads); err != nil {
		return nil, err
	}
	return page, nil
}

// hydrate resolves segments, tags, authors, bookmark counts and reaction
// totals for a list of threads, keeping their order.
func (s *ThreadService) hydrate(ctx context.Context, threads []models.Thread) ([]ThreadDetail, error) {
	out := make([]ThreadDetail, len(threads))
	if len(threads) == 0 {
		return out, nil
	}
	db := s.db.WithContext(ctx)
	ids := make([]string, len(threads))
	owners := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
		owners[i] = t.UserID
	}

	var (
		segments  []models.Segment
		tags      map[string][]string
		bookmarks map[string]int64
		reactions map[string]ReactionCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.WithContext(gctx).Where("thread_id IN ?", ids).
			Order("thread_id").Order("order_index").Find(&segments).Error
	})
	g.Go(func() error {
		var err error
		if tags, err = tagNamesByThread(db.WithContext(gctx), ids); err != nil {
			s.log.Warn("tag resolution failed", "error", err)
			tags = map[string][]string{}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bookmarks, err = countBookmarks(db.WithContext(gctx), ids)
		return err
	})
	g.Go(func() error {
		var err error
		reactions, err = reactionTotals(db.WithContext(gctx), ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byThread := make(map[string][]models.Segment, len(threads))
	for _, seg := range segments {
		byThread[seg.ThreadID] = append(byThread[seg.ThreadID], seg)
	}
	authors := s.profiles.DisplayNames(ctx, owners)

	for i, t := range threads {
		d := ThreadDetail{
			Thread:         t,
			Author:         authors[t.UserID],
			Segments:       byThread[t.ID],
			Tags:           tags[t.ID],
			ReactionCounts: reactions[t.ID],
			Bookmarks:      bookmarks[t.ID],
		}
		if d.Segments == nil {
			d.Segments = []models.Segment{}
		}
		if d.Tags == nil {
			d.Tags = []string{}
		}
		if d.ReactionCounts == nil {
			d.ReactionCounts = NewReactionCounts()
		}
		out[i] = d
	}
	return out, nil
}

// hydrateIDs loads threads by id and hydrates them in the given order,
// skipping ids that no longer resolve.
func (s *ThreadService) hydrateIDs(ctx context.Context, ids []string) ([]ThreadDetail, error) {
	if len(ids) == 0 {
		return []ThreadDetail{}, nil
	}
	var rows []models.Thread
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Thread, len(rows))
	for _, t := range rows {
		byID[t.ID] = t
	}
	ordered := make([]models.Thread, 0, len(rows))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return s.hydrate(ctx, ordered)
}

// Lineage walks the ancestors of a thread, nearest first. Ancestors the
// caller cannot see are reported with an empty title.
func (s *ThreadService) Lineage(ctx context.Context, id string) ([]LineageNode, error) {
	t, err := s.findReadable(ctx, id)
	if err != nil {
		return nil, err
	}
	nodes := []LineageNode{}
	seen := map[string]bool{id: true}
	next := t.OriginalThreadID
	for next != nil && !seen[*next] {
		seen[*next] = true
		parent, err := s.find(ctx, *next)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				break
			}
			return nil, err
		}
		node := LineageNode{ID: parent.ID, UserID: parent.UserID}
		if canRead(ctx, parent) == nil {
			node.Title = parent.Title
			node.Author = s.profiles.DisplayName(ctx, parent.UserID)
		}
		nodes = append(nodes, node)
		next = parent.OriginalThreadID
	}
	return nodes, nil
}

// Forks lists the visible direct forks of a thread.
func (s *ThreadService) Forks(ctx context.Context, id string) ([]ThreadDetail, error) {
	if _, err := s.findReadable(ctx, id); err != nil {
		return nil, err
	}
	var threads []models.Thread
	q := visible(ctx, s.db.WithContext(ctx).Model(&models.Thread{}), false)
	if err := q.Where("threads.original_thread_id = ?", id).Order("threads.created_at").Find(&threads).Error; err != nil {
		return nil, err
	}
	return s.hydrate(ctx, threads)
}

// Related lists visible published threads sharing at least one tag with
// the given thread, most shared tags first.
func (s *ThreadService) Related(ctx context.Context, id string, limit int) ([]ThreadDetail, error) {
	if _, err := s.findReadable(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 3
	}
	if limit > 20 {
		limit = 20
	}
	q := s.db.WithContext(ctx).Table("thread_tags AS cur").
		Joins("JOIN thread_tags AS other ON other.tag_id = cur.tag_id AND other.thread_id <> cur.thread_id").
		Joins("JOIN threads ON threads.id = other.thread_id").
		Where("cur.thread_id = ?", id)
	q = visible(ctx, q, true)

	var ids []string
	err := q.Group("other.thread_id, threads.created_at").
		Order("COUNT(*) DESC").Order("threads.created_at DESC").
		Limit(limit).Pluck("other.thread_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return s.hydrateIDs(ctx, ids)
}

// afterWrite refreshes derived state that lives outside the transaction.
func (s *ThreadService) afterWrite(ctx context.Context, id string) {
	if s.ranking != nil {
		s.ranking.ScheduleUpdate(id)
	}
	s.notify(ctx, id, ThreadUpdated)
	if s.search == nil {
		return
	}
	detail, err := s.load(ctx, id)
	if err != nil {
		s.log.Warn("reload for indexing failed", "threadID", id, "error", err)
		return
	}
	s.search.IndexThread(detail)
}
