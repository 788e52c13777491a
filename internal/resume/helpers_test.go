package resume

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvbuilder/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), "silent")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) uint {
	t.Helper()
	user := database.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

type fakeCache struct {
	mu          sync.Mutex
	views       map[string]PublicView
	invalidated []string
	gets        int
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: map[string]PublicView{}}
}

func (c *fakeCache) Get(_ context.Context, shareID string) (*PublicView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	view, ok := c.views[shareID]
	if !ok {
		return nil, nil
	}
	return &view, nil
}

func (c *fakeCache) Set(_ context.Context, shareID string, view PublicView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[shareID] = view
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, shareID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, shareID)
	c.invalidated = append(c.invalidated, shareID)
	return nil
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []SnapshotRef
}

func (p *fakePublisher) PublishSnapshot(_ context.Context, ref SnapshotRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, ref)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
