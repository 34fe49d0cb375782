package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLog(key string, updated time.Time) IssueLog {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return IssueLog{
		Snapshot: IssueSnapshot{Key: key, IssueType: "Idea", Status: "Build", Created: created, Updated: updated},
		Baseline: Baseline{Timestamp: created.UnixMicro(), Status: "Parking Lot"},
		Events: []ChangeEvent{
			{IssueKey: key, Field: FieldStatus, FromValue: "Parking Lot", ToValue: "Discovery", Timestamp: created.Add(24 * time.Hour).UnixMicro()},
			{IssueKey: key, Field: FieldStatus, FromValue: "Discovery", ToValue: "Build", Timestamp: created.Add(72 * time.Hour).UnixMicro()},
		},
	}
}

func TestEventStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	sourceID := "discovery"

	store1 := NewEventStore()
	older := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store1.Put(sourceID, sampleLog("DISC-2", newer))
	store1.Put(sourceID, sampleLog("DISC-1", older))

	require.NoError(t, store1.Save(tmpDir, sourceID))

	cacheFile := filepath.Join(tmpDir, sourceID+".jsonl")
	assert.FileExists(t, cacheFile)
	assert.NoFileExists(t, cacheFile+".tmp", "temporary cache file should have been renamed")

	store2 := NewEventStore()
	require.NoError(t, store2.Load(tmpDir, sourceID))

	logs := store2.Logs(sourceID)
	require.Len(t, logs, 2)
	assert.Equal(t, []string{"DISC-1", "DISC-2"}, []string{logs[0].Key(), logs[1].Key()})
	require.Len(t, logs[0].Events, 2)
	assert.Equal(t, "Build", logs[0].Events[1].ToValue)
	assert.True(t, store2.GetLatestUpdate(sourceID).Equal(newer), "latest update %v", store2.GetLatestUpdate(sourceID))
}

func TestEventStore_PutReplaces(t *testing.T) {
	s := NewEventStore()
	l := sampleLog("DISC-1", time.Now())
	s.Put("a", l)

	l.Events = l.Events[:1]
	s.Put("a", l)

	got, ok := s.Get("a", "DISC-1")
	require.True(t, ok)
	assert.Len(t, got.Events, 1)
	assert.Equal(t, 1, s.Count("a"))

	src, _, ok := s.Find("DISC-1")
	assert.True(t, ok)
	assert.Equal(t, "a", src)

	s.Clear("a")
	assert.Zero(t, s.Count("a"))
}

func TestEventStore_LoadMissingAndCorrupt(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewEventStore()
	require.NoError(t, s.Load(tmpDir, "none"), "missing cache should not error")

	content := "not-json\n{\"snapshot\":{\"key\":\"DISC-9\"},\"baseline\":{\"ts\":0,\"status\":\"Discovery\"},\"events\":[]}\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "mixed.jsonl"), []byte(content), 0o644))
	require.NoError(t, s.Load(tmpDir, "mixed"))
	assert.Equal(t, 1, s.Count("mixed"), "corrupt line is skipped")

	assert.NoError(t, DeleteCache(tmpDir, "mixed"))
	assert.NoError(t, DeleteCache(tmpDir, "mixed"), "deleting a missing cache is not an error")
}
