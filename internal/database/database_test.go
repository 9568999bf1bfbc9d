package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(id, createdAt string) Run {
	return Run{
		ID:           id,
		CreatedAt:    createdAt,
		Summary:      "two items analyzed",
		KeyPoints:    []string{"first point", "second point"},
		Report:       "report text",
		ItemCount:    2,
		SuccessCount: 1,
		ContentTypes: []string{"url", "code"},
		Results: []RunResult{
			{Position: 0, ContentType: "url", OriginalContent: "https://example.com", Analysis: "page", Summary: "page", KeyPoints: []string{"a"}, Confidence: 0.8},
			{Position: 1, ContentType: "code", OriginalContent: "x = 1", Analysis: "code analysis failed: boom", Summary: "an error occurred", Confidence: 0},
		},
	}
}

func TestInsertAndGetRun(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertRun(sampleRun("run-1", "2026-10-15T10:00:00Z")))

	got, err := db.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "two items analyzed", got.Summary)
	assert.Equal(t, []string{"first point", "second point"}, got.KeyPoints)
	assert.Equal(t, []string{"url", "code"}, got.ContentTypes)
	assert.Equal(t, 2, got.ItemCount)
	assert.False(t, got.Fallback)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "url", got.Results[0].ContentType)
	assert.InDelta(t, 0.8, got.Results[0].Confidence, 1e-9)
	assert.Equal(t, []string{}, got.Results[1].KeyPoints)
}

func TestGetRunMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetRun("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertDuplicateRunRollsBack(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertRun(sampleRun("dup", "2026-10-15T10:00:00Z")))
	assert.Error(t, db.InsertRun(sampleRun("dup", "2026-10-15T11:00:00Z")))

	got, err := db.GetRun("dup")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15T10:00:00Z", got.CreatedAt)
	assert.Len(t, got.Results, 2)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertRun(sampleRun("old", "2026-10-14T10:00:00Z")))
	require.NoError(t, db.InsertRun(sampleRun("new", "2026-10-15T10:00:00Z")))
	require.NoError(t, db.InsertRun(sampleRun("mid", "2026-10-14T18:00:00Z")))

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Equal(t, "old", runs[2].ID)
	assert.Nil(t, runs[0].Results)

	limited, err := db.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDeleteRunCascades(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertRun(sampleRun("gone", "2026-10-15T10:00:00Z")))
	require.NoError(t, db.DeleteRun("gone"))

	got, err := db.GetRun("gone")
	require.NoError(t, err)
	assert.Nil(t, got)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Results)
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	empty, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Runs)
	assert.Equal(t, "", empty.LastRunAt)

	require.NoError(t, db.InsertRun(sampleRun("a", "2026-10-14T10:00:00Z")))
	require.NoError(t, db.InsertRun(sampleRun("b", "2026-10-15T10:00:00Z")))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, 4, stats.Results)
	assert.Equal(t, 2, stats.UsableResults)
	assert.Equal(t, map[string]int{"url": 2, "code": 2}, stats.ByType)
	assert.Equal(t, "2026-10-15T10:00:00Z", stats.LastRunAt)
}
