package router

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"threadspire/internal/auth"
	"threadspire/internal/config"
	"threadspire/internal/db"
	"threadspire/internal/logger"
	"threadspire/internal/models"
	"threadspire/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testApp struct {
	engine *gin.Engine
	cfg    config.Config
	conn   *gorm.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := config.Default()
	cfg.RateLimit = config.RateConfig{RPS: 1000, Burst: 1000}
	cfg.AdminIDs = []string{"admin"}

	tmpl, err := LoadTemplates("../../web/templates")
	require.NoError(t, err)

	engine := New(Options{
		Config:     cfg,
		Services:   services.New(conn, logger.Nop(), services.Options{}),
		Log:        logger.Nop(),
		HTMLRender: tmpl,
	})
	return &testApp{engine: engine, cfg: cfg, conn: conn}
}

func (a *testApp) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.IssueToken(a.cfg.JWTSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request as userID; an empty userID is anonymous.
func (a *testApp) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, userID))
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, w, &body)
	return body.Error.Code
}

func (a *testApp) createThread(t *testing.T, owner string, body gin.H) services.ThreadDetail {
	t.Helper()
	if _, ok := body["title"]; !ok {
		body["title"] = "A thread"
	}
	if _, ok := body["segments"]; !ok {
		body["segments"] = []string{"first", "second"}
	}
	if _, ok := body["publish"]; !ok {
		body["publish"] = true
	}
	w := a.do(t, http.MethodPost, "/api/threads", owner, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d services.ThreadDetail
	decode(t, w, &d)
	return d
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateThreadRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/threads", "", gin.H{"title": "x", "segments": []string{"a"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", errorCode(t, w))

	d := app.createThread(t, "alice", gin.H{})
	assert.Equal(t, "alice", d.UserID)
	assert.Len(t, d.Segments, 2)
}

func TestThreadErrorsMapToStatuses(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/threads", "alice", gin.H{"title": "", "segments": []string{"a"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", errorCode(t, w))

	w = app.do(t, http.MethodGet, "/api/threads/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))

	private := app.createThread(t, "alice", gin.H{"private": true})
	w = app.do(t, http.MethodGet, "/api/threads/"+private.ID, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "private", errorCode(t, w))

	w = app.do(t, http.MethodGet, "/api/threads/"+private.ID, "bob", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateWithStaleVersionConflicts(t *testing.T) {
	app := newTestApp(t)
	d := app.createThread(t, "alice", gin.H{})

	w := app.do(t, http.MethodPatch, "/api/threads/"+d.ID, "alice", gin.H{"title": "Renamed", "version": d.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodPatch, "/api/threads/"+d.ID, "alice", gin.H{"title": "Again", "version": d.Version})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errorCode(t, w))

	w = app.do(t, http.MethodPatch, "/api/threads/"+d.ID, "bob", gin.H{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReactionsOverHTTP(t *testing.T) {
	app := newTestApp(t)
	d := app.createThread(t, "alice", gin.H{})

	w := app.do(t, http.MethodPost, "/api/threads/"+d.ID+"/reactions", "bob", gin.H{"type": "🔥"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var state services.ReactionState
	decode(t, w, &state)
	require.NotNil(t, state.Active)
	assert.Equal(t, "🔥", *state.Active)

	w = app.do(t, http.MethodGet, "/api/threads/"+d.ID+"/reactions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var counts struct {
		Counts services.ReactionCounts `json:"counts"`
	}
	decode(t, w, &counts)
	assert.Equal(t, 1, counts.Counts["🔥"])
	assert.Equal(t, 0, counts.Counts["💡"])

	w = app.do(t, http.MethodPost, "/api/threads/"+d.ID+"/reactions", "bob", gin.H{"type": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodDelete, "/api/threads/"+d.ID+"/reactions?type="+"%F0%9F%94%A5", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &state)
	assert.Zero(t, state.Counts.Total())
}

func TestForkOverHTTP(t *testing.T) {
	app := newTestApp(t)
	d := app.createThread(t, "alice", gin.H{})

	w := app.do(t, http.MethodPost, "/api/threads/"+d.ID+"/fork", "bob", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		ID string `json:"id"`
	}
	decode(t, w, &body)
	require.NotEmpty(t, body.ID)

	w = app.do(t, http.MethodGet, "/api/threads/"+body.ID, "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fork services.ThreadDetail
	decode(t, w, &fork)
	require.NotNil(t, fork.OriginalThreadID)
	assert.Equal(t, d.ID, *fork.OriginalThreadID)
	assert.False(t, fork.IsPublished)
}

func TestThreadPageRecordsView(t *testing.T) {
	app := newTestApp(t)
	d := app.createThread(t, "alice", gin.H{"title": "Rendered thread"})

	w := app.do(t, http.MethodGet, "/t/"+d.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Rendered thread")
	assert.Contains(t, w.Body.String(), "first")

	var row models.ThreadAnalytics
	require.NoError(t, app.conn.First(&row, "thread_id = ?", d.ID).Error)
	assert.Equal(t, 1, row.ViewCount)

	w = app.do(t, http.MethodGet, "/t/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionLogin(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/session", "", gin.H{"token": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodPost, "/api/session", "", gin.H{"token": app.token(t, "carol")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/drafts", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdminRoutesAreGated(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/admin/rankings", "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/admin/rankings", "admin", nil)
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

func TestDraftPublishOverHTTP(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/drafts", "alice", gin.H{
		"title":   "From draft",
		"content": []gin.H{{"type": "text", "content": "hello"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var draft services.DraftView
	decode(t, w, &draft)

	w = app.do(t, http.MethodGet, "/api/drafts/"+draft.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/drafts/"+draft.ID+"/publish", "alice", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var thread services.ThreadDetail
	decode(t, w, &thread)
	assert.True(t, thread.IsPublished)

	w = app.do(t, http.MethodGet, "/api/drafts/"+draft.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSitemapSkipsPrivateThreads(t *testing.T) {
	app := newTestApp(t)
	public := app.createThread(t, "alice", gin.H{})
	private := app.createThread(t, "alice", gin.H{"private": true})

	w := app.do(t, http.MethodGet, "/sitemap.xml", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/t/"+public.ID)
	assert.NotContains(t, w.Body.String(), "/t/"+private.ID)
}

func TestReactionStream(t *testing.T) {
	app := newTestApp(t)
	d := app.createThread(t, "alice", gin.H{})

	srv := httptest.NewServer(app.engine)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/threads/" + d.ID + "/reactions/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := make(chan services.ReactionCounts, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var counts services.ReactionCounts
			if json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &counts) == nil {
				events <- counts
			}
		}
		close(events)
	}()

	next := func() services.ReactionCounts {
		select {
		case c, ok := <-events:
			require.True(t, ok, "stream closed")
			return c
		case <-time.After(5 * time.Second):
			require.FailNow(t, "no event received")
			return nil
		}
	}

	assert.Zero(t, next().Total())

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/api/threads/%s/reactions", srv.URL, d.ID),
		strings.NewReader(`{"type":"💡"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+app.token(t, "bob"))
	post, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	assert.Equal(t, 1, next()["💡"])
}

// sseEvents reads "event:"/"data:" pairs from an open stream.
func sseEvents(t *testing.T, resp *http.Response) <-chan [2]string {
	t.Helper()
	out := make(chan [2]string, 8)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		var name string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				out <- [2]string{name, strings.TrimSpace(strings.TrimPrefix(line, "data:"))}
			}
		}
	}()
	return out
}

func nextSSE(t *testing.T, events <-chan [2]string, want string) string {
	t.Helper()
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed")
			if ev[0] == want {
				return ev[1]
			}
		case <-time.After(5 * time.Second):
			require.FailNow(t, "no "+want+" event received")
			return ""
		}
	}
}

func (a *testApp) openSSE(t *testing.T, url, userID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return resp
}

func TestThreadStream(t *testing.T) {
	app := newTestApp(t)
	d := app.createThread(t, "alice", gin.H{})

	srv := httptest.NewServer(app.engine)
	defer srv.Close()

	resp := app.openSSE(t, srv.URL+"/api/threads/"+d.ID+"/stream", "")
	defer resp.Body.Close()
	events := sseEvents(t, resp)

	var ev services.ThreadEvent
	require.NoError(t, json.Unmarshal([]byte(nextSSE(t, events, "thread")), &ev))
	assert.Equal(t, services.ThreadSnapshot, ev.Type)
	require.NotNil(t, ev.Thread)
	assert.Equal(t, "A thread", ev.Thread.Title)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/threads/"+d.ID, strings.NewReader(`{"title":"Live title"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+app.token(t, "alice"))
	patch, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	patch.Body.Close()
	require.Equal(t, http.StatusOK, patch.StatusCode)

	require.NoError(t, json.Unmarshal([]byte(nextSSE(t, events, "thread")), &ev))
	assert.Equal(t, services.ThreadUpdated, ev.Type)
	require.NotNil(t, ev.Thread)
	assert.Equal(t, "Live title", ev.Thread.Title)
}

func TestCollectionStreamRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/api/collections/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	srv := httptest.NewServer(app.engine)
	defer srv.Close()

	resp := app.openSSE(t, srv.URL+"/api/collections/stream", "bob")
	defer resp.Body.Close()
	events := sseEvents(t, resp)
	assert.Equal(t, "[]", nextSSE(t, events, "collections"))

	w = app.do(t, http.MethodPost, "/api/collections", "bob", gin.H{"name": "reading"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var col models.Collection
	decode(t, w, &col)

	var ev services.CollectionEvent
	require.NoError(t, json.Unmarshal([]byte(nextSSE(t, events, "collection")), &ev))
	assert.Equal(t, services.CollectionCreated, ev.Type)
	assert.Equal(t, col.ID, ev.CollectionID)

	w = app.do(t, http.MethodGet, "/api/collections/"+col.ID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRelatedAndInteractions(t *testing.T) {
	app := newTestApp(t)
	base := app.createThread(t, "alice", gin.H{"tags": []string{"go", "db"}})
	match := app.createThread(t, "bob", gin.H{"tags": []string{"db"}})
	app.createThread(t, "bob", gin.H{"tags": []string{"art"}})

	w := app.do(t, http.MethodGet, "/api/threads/"+base.ID+"/related", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var related struct {
		Threads []services.ThreadDetail `json:"threads"`
	}
	decode(t, w, &related)
	require.Len(t, related.Threads, 1)
	assert.Equal(t, match.ID, related.Threads[0].ID)

	w = app.do(t, http.MethodPost, "/api/threads/"+base.ID+"/views", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/threads/"+base.ID+"/interactions", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Interactions []services.Interaction `json:"interactions"`
	}
	decode(t, w, &body)
	require.Len(t, body.Interactions, 1)
	assert.Equal(t, "view", body.Interactions[0].Type)
	assert.NotContains(t, w.Body.String(), "carol")
}
