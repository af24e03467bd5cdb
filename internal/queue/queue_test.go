package queue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"aclo/internal/workspace"
)

func TestLoad_LinesFormatSkipsCommentsAndBlank(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goals.lines")
	content := "ship the scheduler\n# a comment\n\nadd retry controller\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	result, err := Load(path, FormatAuto, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Format != FormatLines {
		t.Errorf("expected lines format, got %s", result.Format)
	}
	if len(result.Goals) != 2 {
		t.Fatalf("expected 2 goals, got %d: %v", len(result.Goals), result.Goals)
	}
}

func TestLoad_JSONArrayAndObjectForms(t *testing.T) {
	dir := t.TempDir()

	arrayPath := filepath.Join(dir, "a.json")
	os.WriteFile(arrayPath, []byte(`["goal one", "goal two"]`), 0o644)
	res, err := Load(arrayPath, FormatAuto, false)
	if err != nil || len(res.Goals) != 2 {
		t.Fatalf("array form: %v %v", res, err)
	}

	objPath := filepath.Join(dir, "b.json")
	os.WriteFile(objPath, []byte(`{"goals": ["goal three"]}`), 0o644)
	res, err = Load(objPath, FormatAuto, false)
	if err != nil || len(res.Goals) != 1 {
		t.Fatalf("object form: %v %v", res, err)
	}
}

func TestLoad_MissingFileAutoCreatesEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.lines")

	res, err := Load(path, FormatAuto, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Goals) != 0 {
		t.Errorf("expected zero goals, got %d", len(res.Goals))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to be created: %v", err)
	}
}

func TestLoad_DedupeIsFirstOccurrenceWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.lines")
	os.WriteFile(path, []byte("Ship It\nship   it\nanother goal\n"), 0o644)

	res, err := Load(path, FormatAuto, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.DuplicateCount != 1 {
		t.Errorf("expected duplicate_count=1, got %d", res.DuplicateCount)
	}
	if len(res.Goals) != 2 {
		t.Fatalf("expected 2 goals after dedupe, got %d", len(res.Goals))
	}
	if res.Goals[0] != "Ship It" {
		t.Errorf("expected first occurrence kept, got %q", res.Goals[0])
	}
}

func TestDedupe_SecondPassIsIdempotent(t *testing.T) {
	goals := []Goal{"Ship It", "ship   it", "another goal"}
	first, dupCount := Dedupe(goals)
	if dupCount != 1 {
		t.Fatalf("expected 1 duplicate, got %d", dupCount)
	}
	second, secondDupCount := Dedupe(first)
	if secondDupCount != 0 {
		t.Errorf("expected idempotent dedupe, got %d duplicates on second pass", secondDupCount)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second dedupe pass changed the goal list (-first +second):\n%s", diff)
	}
}

func TestCommentOnlyQueueProducesZeroGoals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.lines")
	os.WriteFile(path, []byte("# just a comment\n\n   \n"), 0o644)

	res, err := Load(path, FormatAuto, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Goals) != 0 {
		t.Errorf("expected zero goals, got %d", len(res.Goals))
	}
}

func TestDequeue(t *testing.T) {
	goals := []Goal{"a", "b", "c", "d"}
	dequeued, remainder := Dequeue(goals, 2)
	if len(dequeued) != 2 || len(remainder) != 2 {
		t.Fatalf("unexpected split: dequeued=%v remainder=%v", dequeued, remainder)
	}

	all, none := Dequeue(goals, 0)
	if len(all) != 4 || none != nil {
		t.Fatalf("n<=0 should dequeue everything: all=%v none=%v", all, none)
	}
}

func TestLeaseAcquireRefreshRelease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goals.lines")
	os.WriteFile(path, []byte("goal\n"), 0o644)
	ws := workspace.New(dir, nil)

	lease, err := Acquire(ws, path, time.Hour)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lease.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := lease.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Errorf("expected lease file removed after release")
	}
}

func TestLeaseAcquireCollisionFailsWhenFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goals.lines")
	os.WriteFile(path, []byte("goal\n"), 0o644)
	ws := workspace.New(dir, nil)

	first, err := Acquire(ws, path, time.Hour)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Release()

	if _, err := Acquire(ws, path, time.Hour); err == nil {
		t.Error("expected second Acquire to fail while first lease is fresh")
	}
}

func TestLeaseStealsStaleLease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goals.lines")
	os.WriteFile(path, []byte("goal\n"), 0o644)

	stale := LeaseInfo{
		Token:      "dead-token",
		PID:        999999,
		Host:       "crashed-host",
		AcquiredAt: time.Now().Add(-2 * time.Hour),
		TouchedAt:  time.Now().Add(-2 * time.Hour),
	}
	if err := writeLeaseInfo(path+".lock", stale); err != nil {
		t.Fatalf("seed stale lease: %v", err)
	}

	ws := workspace.New(dir, nil)
	second, err := Acquire(ws, path, time.Minute)
	if err != nil {
		t.Fatalf("expected stale lease to be stolen: %v", err)
	}
	defer second.Release()

	if second.token == stale.Token {
		t.Error("expected a fresh token after stealing the stale lease")
	}
}
