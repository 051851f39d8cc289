package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"threadspire/internal/auth"
	"threadspire/internal/db"
	"threadspire/internal/logger"
	"threadspire/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return conn
}

func newTestServices(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	return New(conn, logger.Nop(), Options{}), conn
}

func as(userID string) context.Context {
	return auth.WithUser(context.Background(), userID)
}

var anon = context.Background()

func createThread(t *testing.T, svc *Services, owner string, in CreateThreadInput) *ThreadDetail {
	t.Helper()
	if in.Title == "" {
		in.Title = "A thread"
	}
	if in.Segments == nil {
		in.Segments = []string{"first", "second"}
	}
	d, err := svc.Threads.CreateThread(as(owner), in)
	require.NoError(t, err)
	return d
}

func segmentContents(segs []models.Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Content
	}
	return out
}

func requireDenseOrder(t *testing.T, conn *gorm.DB, threadID string) {
	t.Helper()
	var idx []int
	require.NoError(t, conn.Model(&models.Segment{}).Where("thread_id = ?", threadID).
		Order("order_index").Pluck("order_index", &idx).Error)
	for i, v := range idx {
		require.Equal(t, i, v, "order_index must be dense and zero based")
	}
}

// failInserts makes every insert into table fail with err until the test
// ends; times limits how many inserts fail, 0 meaning all of them.
func failInserts(t *testing.T, conn *gorm.DB, table string, err error, times int) {
	t.Helper()
	failed := 0
	require.NoError(t, conn.Callback().Create().Before("gorm:create").
		Register("test:fail_"+table, func(tx *gorm.DB) {
			if tx.Statement.Table != table || (times > 0 && failed >= times) {
				return
			}
			failed++
			_ = tx.AddError(err)
		}))
}

var errDiskFull = errors.New("disk full")

func strPtr(s string) *string { return &s }
