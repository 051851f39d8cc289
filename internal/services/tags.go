package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"threadspire/internal/models"
	"threadspire/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxTags      = 10
	MaxTagLength = 50
)

// normalizeTags trims, drops blanks and de-duplicates while keeping order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, raw := range tags {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		if utf8.RuneCountInString(name) > MaxTagLength {
			return nil, &ValidationError{Field: "tags", Message: fmt.Sprintf("tag %q exceeds %d characters", name, MaxTagLength)}
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) > MaxTags {
		return nil, &ValidationError{Field: "tags", Message: fmt.Sprintf("at most %d tags allowed", MaxTags)}
	}
	return out, nil
}

type tagResolver struct {
	ids *utils.TTLCache[string]
}

// ensure returns tag ids for names, creating missing tags. Only ids read
// back from rows that already existed are cached, since rows created here
// disappear if the surrounding transaction rolls back.
func (r *tagResolver) ensure(tx *gorm.DB, names []string) ([]string, error) {
	ids := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		if id, ok := r.ids.Get(name); ok {
			ids[name] = id
			continue
		}
		missing = append(missing, name)
	}

	if len(missing) > 0 {
		var existing []models.Tag
		if err := tx.Where("name IN ?", missing).Find(&existing).Error; err != nil {
			return nil, err
		}
		for _, t := range existing {
			ids[t.Name] = t.ID
			r.ids.Set(t.Name, t.ID)
		}

		var create []models.Tag
		for _, name := range missing {
			if _, ok := ids[name]; !ok {
				create = append(create, models.Tag{Name: name})
			}
		}
		if len(create) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&create).Error
			if err != nil {
				return nil, err
			}
			var created []models.Tag
			if err := tx.Where("name IN ?", tagNames(create)).Find(&created).Error; err != nil {
				return nil, err
			}
			for _, t := range created {
				ids[t.Name] = t.ID
			}
		}
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := ids[name]
		if !ok {
			return nil, fmt.Errorf("tag %q could not be resolved", name)
		}
		out = append(out, id)
	}
	return out, nil
}

func (r *tagResolver) link(tx *gorm.DB, threadID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	ids, err := r.ensure(tx, names)
	if err != nil {
		return err
	}
	links := make([]models.ThreadTag, 0, len(ids))
	for _, id := range ids {
		links = append(links, models.ThreadTag{ThreadID: threadID, TagID: id})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

// replace swaps the whole tag set of a thread.
func (r *tagResolver) replace(tx *gorm.DB, threadID string, names []string) error {
	if err := tx.Where("thread_id = ?", threadID).Delete(&models.ThreadTag{}).Error; err != nil {
		return err
	}
	return r.link(tx, threadID, names)
}

// tagNamesByThread resolves the tag names of each thread, sorted by name.
func tagNamesByThread(db *gorm.DB, threadIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ThreadID string
		Name     string
	}
	err := db.Table("thread_tags").
		Select("thread_tags.thread_id, tags.name").
		Joins("JOIN tags ON tags.id = thread_tags.tag_id").
		Where("thread_tags.thread_id IN ?", threadIDs).
		Order("tags.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ThreadID] = append(out[row.ThreadID], row.Name)
	}
	return out, nil
}

func tagNames(tags []models.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}
