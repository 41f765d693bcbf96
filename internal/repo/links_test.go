package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abdusco/shortly/internal"
	"github.com/abdusco/shortly/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *LinksRepo {
	t.Helper()

	conn, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "links.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewLinksRepo(conn)
}

func TestLinksRepo_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	created, err := r.Insert(ctx, "https://example.com/a", "abc123")
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "abc123", created.Code)
	assert.Equal(t, int64(0), created.ClickCount)
	assert.Nil(t, created.LastClicked)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	found, err := r.FindByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, created, found)
}

func TestLinksRepo_CodesAreCaseSensitive(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	_, err := r.Insert(ctx, "https://example.com/lower", "abcdef")
	require.NoError(t, err)
	_, err = r.Insert(ctx, "https://example.com/upper", "ABCDEF")
	require.NoError(t, err)

	found, err := r.FindByCode(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/upper", found.URL)
}

func TestLinksRepo_InsertDuplicateCode(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	_, err := r.Insert(ctx, "https://example.com/a", "dup123")
	require.NoError(t, err)

	_, err = r.Insert(ctx, "https://example.com/b", "dup123")
	assert.ErrorIs(t, err, internal.ErrCodeExists)
}

func TestLinksRepo_ConcurrentInsertSameCode(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	const workers = 8
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Insert(ctx, fmt.Sprintf("https://example.com/%d", i), "race01")
		}()
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, internal.ErrCodeExists):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicted)
}

func TestLinksRepo_FindByCodeMissing(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.FindByCode(context.Background(), "nope00")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)
}

func TestLinksRepo_ListAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []string{"first1", "second", "third3"} {
		r.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := r.Insert(ctx, "https://example.com/"+c, c)
		require.NoError(t, err)
	}

	links, err := r.ListAll(ctx)
	require.NoError(t, err)

	codes := make([]string, len(links))
	for i, l := range links {
		codes[i] = l.Code
	}
	assert.Equal(t, []string{"third3", "second", "first1"}, codes)
}

func TestLinksRepo_ListAllBreaksTiesByInsertOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	for _, c := range []string{"aaaaaa", "bbbbbb"} {
		_, err := r.Insert(ctx, "https://example.com/"+c, c)
		require.NoError(t, err)
	}

	links, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "bbbbbb", links[0].Code)
}

func TestLinksRepo_ListAllEmpty(t *testing.T) {
	links, err := newTestRepo(t).ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestLinksRepo_DeleteByCode(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	_, err := r.Insert(ctx, "https://example.com/a", "gone12")
	require.NoError(t, err)

	require.NoError(t, r.DeleteByCode(ctx, "gone12"))

	_, err = r.FindByCode(ctx, "gone12")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	err = r.DeleteByCode(ctx, "gone12")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	// the code is free again
	_, err = r.Insert(ctx, "https://example.com/b", "gone12")
	assert.NoError(t, err)
}

func TestLinksRepo_IncrementClick(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clicked := created.Add(time.Hour)

	r.now = func() time.Time { return created }
	_, err := r.Insert(ctx, "https://example.com/a", "click1")
	require.NoError(t, err)

	r.now = func() time.Time { return clicked }
	link, err := r.IncrementClick(ctx, "click1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), link.ClickCount)
	require.NotNil(t, link.LastClicked)
	assert.True(t, clicked.Equal(*link.LastClicked))
	assert.True(t, clicked.Equal(link.UpdatedAt))
	assert.True(t, created.Equal(link.CreatedAt))
}

func TestLinksRepo_IncrementClickMissing(t *testing.T) {
	_, err := newTestRepo(t).IncrementClick(context.Background(), "nope00")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)
}

func TestLinksRepo_ConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	_, err := r.Insert(ctx, "https://example.com/a", "busy01")
	require.NoError(t, err)

	const clicks = 40
	start := time.Now()

	var wg sync.WaitGroup
	for range clicks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.IncrementClick(ctx, "busy01")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	link, err := r.FindByCode(ctx, "busy01")
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), link.ClickCount)
	require.NotNil(t, link.LastClicked)
	assert.False(t, link.LastClicked.Before(start.UTC().Truncate(time.Microsecond)))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("SQLite error: UNIQUE constraint failed: links.code")))
	assert.False(t, isUniqueViolation(sql.ErrConnDone))
}
