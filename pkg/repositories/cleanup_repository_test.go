//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/testhelpers"
)

// insertAgedIdea inserts an idea directly so updated_at can be backdated.
func insertAgedIdea(t *testing.T, engineDB *testhelpers.EngineDB, status string, age time.Duration) {
	t.Helper()
	insertIdeaUpdatedAt(t, engineDB, status, time.Now().Add(-age))
}

func insertIdeaUpdatedAt(t *testing.T, engineDB *testhelpers.EngineDB, status string, updatedAt time.Time) {
	t.Helper()
	_, err := engineDB.DB.Exec(context.Background(), `
		INSERT INTO content_ideas (user_id, title, content_type, target_audience, status, updated_at)
		VALUES ('cleanup-user', 'aged', 'Guide', 'Private Sector', $1, $2)`,
		status, updatedAt)
	require.NoError(t, err)
}

func TestCleanupRepository(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	engineDB.Truncate(t, "content_ideas")
	ctx := engineDB.SystemContext(t)
	repo := NewCleanupRepository()

	day := 24 * time.Hour
	insertAgedIdea(t, engineDB, "discarded", 100*day)
	insertAgedIdea(t, engineDB, "failed", 100*day)
	insertAgedIdea(t, engineDB, "failed", 100*day)
	insertAgedIdea(t, engineDB, "processed", 100*day) // not terminal
	insertAgedIdea(t, engineDB, "discarded", 10*day)  // too recent

	cutoff := time.Now().Add(-90 * day)

	count, err := repo.CountCandidates(ctx, models.CleanupIdeas, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	deleted, err := repo.DeleteBatch(ctx, models.CleanupIdeas, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	deleted, err = repo.DeleteBatch(ctx, models.CleanupIdeas, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	count, err = repo.CountCandidates(ctx, models.CleanupIdeas, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	var remaining int
	require.NoError(t, engineDB.DB.QueryRow(context.Background(), `SELECT COUNT(*) FROM content_ideas`).Scan(&remaining))
	assert.Equal(t, 2, remaining)
}

func TestCleanupRepository_CutoffIsInclusive(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	engineDB.Truncate(t, "content_ideas")
	ctx := engineDB.SystemContext(t)
	repo := NewCleanupRepository()

	cutoff := time.Now().Add(-90 * 24 * time.Hour).Truncate(time.Microsecond)
	insertIdeaUpdatedAt(t, engineDB, "failed", cutoff)
	insertIdeaUpdatedAt(t, engineDB, "failed", cutoff.Add(time.Second))

	count, err := repo.CountCandidates(ctx, models.CleanupIdeas, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "a row exactly at the cutoff qualifies")

	deleted, err := repo.DeleteBatch(ctx, models.CleanupIdeas, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestCleanupRepository_UnknownCollection(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := engineDB.SystemContext(t)

	_, err := NewCleanupRepository().CountCandidates(ctx, models.CleanupCollection("users"), time.Now())
	assert.Error(t, err)
}
