package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"threadspire/internal/logger"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxThreads = "threadspire_threads"

// Document is the indexed form of a published public thread.
type Document struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Snippet   string   `json:"snippet"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags"`
	Author    string   `json:"author"`
	CreatedAt int64    `json:"createdAt"`
}

// Meili indexes and searches threads in Meilisearch, tracking its health in
// the background.
type Meili struct {
	client  meili.ServiceManager
	log     *logger.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili connects to Meilisearch. An unreachable server is not an error:
// the client reports unhealthy until it recovers.
func NewMeili(url, apiKey string, log *logger.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		log:    log.With("component", "Meili"),
		done:   make(chan struct{}),
	}
	if _, err := m.client.Health(); err != nil {
		m.log.Warn("meilisearch unavailable", "url", url, "error", err)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}
	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxThreads, PrimaryKey: "id"}); err != nil {
		m.log.Debug("create index (may already exist)", "index", idxThreads, "error", err)
	}
	index := m.client.Index(idxThreads)
	searchable := []string{"title", "snippet", "body", "tags"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn("update searchable attributes", "error", err)
	}
	sortable := []string{"createdAt"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		m.log.Warn("update sortable attributes", "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			was := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !was {
				m.log.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search returns matching thread ids in relevance order.
func (m *Meili) Search(query string, limit int) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:             idxThreads,
			Query:                query,
			Limit:                int64(limit),
			AttributesToRetrieve: []string{"id"},
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}
	var ids []string
	for _, r := range resp.Results {
		for _, hit := range r.Hits {
			raw, ok := hit["id"]
			if !ok {
				continue
			}
			var id string
			if err := json.Unmarshal(raw, &id); err == nil && id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (m *Meili) Index(doc Document) error {
	_, err := m.client.Index(idxThreads).AddDocuments([]Document{doc}, nil)
	return err
}

func (m *Meili) Delete(id string) error {
	_, err := m.client.Index(idxThreads).DeleteDocument(id, nil)
	return err
}
