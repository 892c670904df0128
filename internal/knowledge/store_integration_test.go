package knowledge_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sombra-labs/confluence-rag/internal/knowledge"
	"github.com/sombra-labs/confluence-rag/internal/log"
	"github.com/sombra-labs/confluence-rag/internal/testutil"
)

func setupStore(t *testing.T) *knowledge.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	return knowledge.NewStore(db.Pool, log.NewNop())
}

func sampleDoc(pageID string) *knowledge.Document {
	return &knowledge.Document{
		PageID:    pageID,
		Title:     "Page " + pageID,
		Content:   "content of " + pageID,
		SpaceKey:  "ENG",
		SpaceName: "Engineering",
	}
}

func TestStore_CreateAndFind(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("100")
	require.NoError(t, store.Create(ctx, doc))
	assert.NotZero(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	found, err := store.FindByPageID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)
	assert.Equal(t, "Page 100", found.Title)
	assert.Equal(t, "ENG", found.SpaceKey)

	exists, err := store.ExistsByPageID(ctx, "100")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_FindMissing(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.FindByPageID(ctx, "nope")
	assert.ErrorIs(t, err, knowledge.ErrNotFound)

	exists, err := store.ExistsByPageID(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_DuplicatePageIDRejected(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleDoc("100")))
	assert.Error(t, store.Create(ctx, sampleDoc("100")), "page_id must be unique")
}

func TestStore_Update(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("100")
	require.NoError(t, store.Create(ctx, doc))
	created := doc.CreatedAt

	time.Sleep(10 * time.Millisecond)

	doc.Title = "Renamed"
	doc.Content = "new content"
	require.NoError(t, store.Update(ctx, doc))

	found, err := store.FindByPageID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.Title)
	assert.Equal(t, "new content", found.Content)
	assert.Equal(t, created.Unix(), found.CreatedAt.Unix(), "CreatedAt must not change on update")
	assert.True(t, found.UpdatedAt.After(found.CreatedAt))
}

func TestStore_UpdateMissing(t *testing.T) {
	store := setupStore(t)

	err := store.Update(context.Background(), sampleDoc("ghost"))
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleDoc("100")))
	require.NoError(t, store.Delete(ctx, "100"))

	_, err := store.FindByPageID(ctx, "100")
	assert.ErrorIs(t, err, knowledge.ErrNotFound)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, "100"))
}

func TestStore_Counts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, store.Create(ctx, sampleDoc(fmt.Sprintf("eng-%d", i))))
	}
	hr := sampleDoc("hr-1")
	hr.SpaceKey = "HR"
	require.NoError(t, store.Create(ctx, hr))

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	engCount, err := store.CountBySpace(ctx, "ENG")
	require.NoError(t, err)
	assert.Equal(t, int64(3), engCount)
}

func TestStore_ListBySpace(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	older := sampleDoc("1")
	require.NoError(t, store.Create(ctx, older))
	time.Sleep(10 * time.Millisecond)
	newer := sampleDoc("2")
	require.NoError(t, store.Create(ctx, newer))

	docs, err := store.ListBySpace(ctx, "ENG")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "2", docs[0].PageID, "newest first")
	assert.Equal(t, "1", docs[1].PageID)

	empty, err := store.ListBySpace(ctx, "NOPE")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
