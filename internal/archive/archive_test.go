package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSanitize(t *testing.T) {
	if err := Sanitize("batch-20260101120000"); err != nil {
		t.Errorf("expected valid id to pass, got %v", err)
	}
	if err := Sanitize("../escape"); err == nil {
		t.Error("expected path-escaping id to be rejected")
	}
	if err := Sanitize(""); err == nil {
		t.Error("expected empty id to be rejected")
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, KindBatch)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	id := s.NewID(now)

	payload, _ := json.Marshal(map[string]string{"note": "hello"})
	path, err := s.Save(Envelope{ID: id, Kind: KindBatch, CreatedAt: now, Status: "completed", Goals: 3, Payload: payload})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != id+".json" {
		t.Errorf("expected filename %s.json, got %s", id, path)
	}

	loaded, err := s.Load(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Status != "completed" || loaded.Goals != 3 {
		t.Errorf("expected round-tripped envelope, got %+v", loaded)
	}
}

func TestStore_ListEntriesSortsDescendingByModTime(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, KindBatch)

	mtimes := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	for i, ts := range mtimes {
		id := "batch-" + string(rune('a'+i))
		path, err := s.Save(Envelope{ID: id, Kind: KindBatch, Status: "completed"})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		if err := os.Chtimes(path, ts, ts); err != nil {
			t.Fatalf("chtimes %d: %v", i, err)
		}
	}

	entries, err := s.ListEntries()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ModTime.After(entries[i-1].ModTime) {
			t.Errorf("expected descending mtime order, got %v then %v", entries[i-1].ModTime, entries[i].ModTime)
		}
	}
}

func TestStore_Stats(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, KindBatch)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Save(Envelope{ID: "batch-a", Status: "completed", Goals: 2, SubSpecs: 4})
	s.Save(Envelope{ID: "batch-b", Status: "failed", Goals: 1})

	stats, err := s.Stats(30, nil, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 2 || stats.CompletedCount != 1 || stats.FailedCount != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.CompletionRate != 50 {
		t.Errorf("expected 50%% completion rate, got %v", stats.CompletionRate)
	}
	if stats.TotalGoals != 3 || stats.TotalSubSpecs != 4 {
		t.Errorf("expected sums across entries, got goals=%d subspecs=%d", stats.TotalGoals, stats.TotalSubSpecs)
	}
}

func TestStore_PruneKeepsNewestAndNeverDeletesCurrentFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, KindBatch)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var currentPath string
	for i := 0; i < 4; i++ {
		id := "batch-" + string(rune('a'+i))
		path, _ := s.Save(Envelope{ID: id, Status: "completed"})
		if i == 0 {
			currentPath = path
		}
	}

	result, err := s.Prune(1, 0, false, currentPath, now.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	for _, id := range result.DeletedIDs {
		if filepath.Join(dir, string(KindBatch), id+".json") == currentPath {
			t.Error("current file must never be deleted")
		}
	}
}

func TestBuildGoalInputGuard_DetectsDuplicates(t *testing.T) {
	guard := BuildGoalInputGuard(true, 1, []string{"a", "b", "a", "a", "c"}, true)
	if guard.DuplicateGoals != 2 {
		t.Errorf("expected 2 duplicate goals (3 occurrences of 'a' = 2 extra), got %d", guard.DuplicateGoals)
	}
	if guard.UniqueGoals != 3 {
		t.Errorf("expected 3 unique goals, got %d", guard.UniqueGoals)
	}
	if !guard.OverLimit || !guard.HardFailTriggered {
		t.Errorf("expected over-limit hard-fail, got %+v", guard)
	}
}

func TestBuildSpecSessionBudget_EstimatesCreated(t *testing.T) {
	budget := BuildSpecSessionBudget(10, 20, 12, 3, false)
	if budget.EstimatedCreated != 5 {
		t.Errorf("expected estimated_created = 12+3-10 = 5, got %d", budget.EstimatedCreated)
	}
}

func TestPruneSpecSessions_ProtectsReferencedAndRecent(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	specs := []SpecSessionRef{
		{ID: "s1", NonCompleted: true, ModTime: now.AddDate(0, 0, -1)},
		{ID: "s2", ModTime: now.AddDate(0, 0, -30)},
		{ID: "s3", ModTime: now.AddDate(0, 0, -1)},
	}
	result := PruneSpecSessions(
		specs,
		map[string]bool{"s1": true},
		map[string]bool{"s3": true},
		nil,
		7, now, true, nil,
	)
	if _, ok := result.Protected["s1"]; !ok {
		t.Error("expected s1 protected via collaboration reference")
	}
	if _, ok := result.Protected["s3"]; !ok {
		t.Error("expected s3 protected via recent session window")
	}
	found := false
	for _, id := range result.Deleted {
		if id == "s2" {
			found = true
		}
	}
	if !found {
		t.Error("expected s2 (old, unreferenced) to be deleted")
	}
}
