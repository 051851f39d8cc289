package services

import (
	"context"
	"time"

	"threadspire/internal/auth"
	"threadspire/internal/logger"
	"threadspire/internal/models"
	"threadspire/internal/realtime"
	"threadspire/internal/utils"

	"gorm.io/gorm"
)

// Broker is the subscribe/notify capability reaction counts are published
// through. realtime.Hub and realtime.RedisBroker implement it.
type Broker interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Subscribe(key string) (<-chan []byte, func())
}

// ScoreScheduler receives thread ids whose trend score went stale.
type ScoreScheduler interface {
	ScheduleUpdate(threadID string)
}

type Options struct {
	Broker Broker       // defaults to an in-process hub
	Engine SearchEngine // optional full-text engine
}

// Services bundles every domain service over one database.
type Services struct {
	Threads     *ThreadService
	Forks       *ForkService
	Drafts      *DraftService
	Previews    *PreviewService
	Reactions   *ReactionService
	Analytics   *AnalyticsService
	Collections *CollectionService
	Bookmarks   *BookmarkService
	Profiles    *ProfileService
	Search      *SearchService
	Ranking     *RankingService
}

func New(db *gorm.DB, log *logger.Logger, opts Options) *Services {
	if opts.Broker == nil {
		opts.Broker = realtime.NewHub(log)
	}

	profiles := &ProfileService{
		db:    db,
		log:   log.With("service", "ProfileService"),
		names: utils.NewTTLCache[string](2000, 5*time.Minute),
	}
	tags := &tagResolver{ids: utils.NewTTLCache[string](2000, time.Hour)}
	ranking := NewRankingService(db, log)
	search := &SearchService{db: db, engine: opts.Engine, log: log.With("service", "SearchService")}

	threads := &ThreadService{
		db:       db,
		log:      log.With("service", "ThreadService"),
		tags:     tags,
		profiles: profiles,
		ranking:  ranking,
		search:   search,
		broker:   opts.Broker,
	}
	search.threads = threads

	drafts := &DraftService{
		db:      db,
		log:     log.With("service", "DraftService"),
		threads: threads,
	}

	return &Services{
		Threads:   threads,
		Forks:     &ForkService{db: db, log: log.With("service", "ForkService"), threads: threads},
		Drafts:    drafts,
		Previews:  &PreviewService{profiles: profiles, drafts: drafts},
		Reactions: &ReactionService{
			db:       db,
			log:      log.With("service", "ReactionService"),
			broker:   opts.Broker,
			threads:  threads,
			profiles: profiles,
			ranking:  ranking,
		},
		Analytics: &AnalyticsService{
			db:      db,
			log:     log.With("service", "AnalyticsService"),
			threads: threads,
			ranking: ranking,
		},
		Collections: &CollectionService{
			db:      db,
			log:     log.With("service", "CollectionService"),
			threads: threads,
			broker:  opts.Broker,
		},
		Bookmarks: &BookmarkService{
			db:      db,
			threads: threads,
			ranking: ranking,
		},
		Profiles: profiles,
		Search:   search,
		Ranking:  ranking,
	}
}

func requireUser(ctx context.Context, action string) (string, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return "", &PermissionError{Action: action, Unauthenticated: true}
	}
	return userID, nil
}

func logInteraction(tx *gorm.DB, threadID, userID, kind string) error {
	return tx.Create(&models.InteractionLog{
		ThreadID:        threadID,
		UserID:          userID,
		InteractionType: kind,
	}).Error
}
