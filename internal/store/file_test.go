package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
)

func testSession(id string) campaign.Session {
	sess := campaign.NewSession(id, campaign.Brief{Text: "Launch X"})
	payload, _ := campaign.EncodePayload(campaign.IntakePayload{Summary: "launch"})
	sess.AppendArtifact(campaign.StageIntake, payload, time.Now())
	return sess
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFileStore_CommitLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	sess := testSession("cmp_rt")

	if err := s.Commit(ctx, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	loaded, err := s.Load(ctx, "cmp_rt")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CampaignID != sess.CampaignID || loaded.Brief != sess.Brief {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if len(loaded.Artifacts[campaign.StageIntake]) != 1 {
		t.Fatal("artifact lost in round trip")
	}

	// Idempotence: two loads with no commit in between agree.
	again, err := s.Load(ctx, "cmp_rt")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, again) {
		t.Fatal("consecutive loads disagree")
	}
}

func TestFileStore_LoadNotFound(t *testing.T) {
	s := newTestFileStore(t)
	_, err := s.Load(context.Background(), "cmp_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_LoadCorruptRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	sess := testSession("cmp_bad")
	if err := s.Commit(ctx, sess); err != nil {
		t.Fatal(err)
	}

	t.Run("invalid json", func(t *testing.T) {
		path := s.recordPath("cmp_bad")
		if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := s.Load(ctx, "cmp_bad")
		if !errors.Is(err, ErrCorruptState) {
			t.Fatalf("expected ErrCorruptState, got %v", err)
		}
	})

	t.Run("invariant violation", func(t *testing.T) {
		broken := sess.Clone()
		broken.CurrentStage = campaign.StageCreative // not the lowest unresolved
		b, _ := json.Marshal(broken)
		if err := os.WriteFile(s.recordPath("cmp_bad"), b, 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := s.Load(ctx, "cmp_bad")
		if !errors.Is(err, ErrCorruptState) {
			t.Fatalf("expected ErrCorruptState, got %v", err)
		}
	})
}

func TestFileStore_CommitRejectsInvalidSession(t *testing.T) {
	s := newTestFileStore(t)
	sess := testSession("cmp_invalid")
	sess.CurrentStage = campaign.StageActivation
	if err := s.Commit(context.Background(), sess); err == nil {
		t.Fatal("expected commit of invalid session to fail")
	}
}

func TestFileStore_CrashLeavesCommittedStateReadable(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	sess := testSession("cmp_crash")
	if err := s.Commit(ctx, sess); err != nil {
		t.Fatal(err)
	}

	// A crashed writer leaves a temp file and possibly a lock behind.
	dir := s.campaignDir("cmp_crash")
	if err := os.WriteFile(filepath.Join(dir, "campaign.json.tmp.123"), []byte("{half"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.lockPath("cmp_crash"), []byte("999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.Load(ctx, "cmp_crash")
	if err != nil {
		t.Fatalf("load after simulated crash: %v", err)
	}
	if loaded.CampaignID != "cmp_crash" {
		t.Fatalf("loaded %+v", loaded)
	}
}

func TestFileStore_ConcurrentCommitRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	sess := testSession("cmp_lock")
	if err := s.Commit(ctx, sess); err != nil {
		t.Fatal(err)
	}

	// A fresh lock file held by another writer blocks the commit.
	if err := os.WriteFile(s.lockPath("cmp_lock"), []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := s.Commit(ctx, sess)
	if !errors.Is(err, ErrConcurrentAccess) {
		t.Fatalf("expected ErrConcurrentAccess, got %v", err)
	}
}

func TestFileStore_StaleLockIsReplaced(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	s.lockTTL = 10 * time.Millisecond
	sess := testSession("cmp_stale")
	if err := s.Commit(ctx, sess); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(s.lockPath("cmp_stale"), []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(s.lockPath("cmp_stale"), old, old); err != nil {
		t.Fatal(err)
	}

	if err := s.Commit(ctx, sess); err != nil {
		t.Fatalf("commit over stale lock: %v", err)
	}
}

func TestFileStore_ListSortedByCreation(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	older := testSession("cmp_old")
	older.CreatedAt = time.Now().Add(-time.Hour).UTC()
	newer := testSession("cmp_new")
	if err := s.Commit(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(ctx, newer); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].CampaignID != "cmp_new" || got[1].CampaignID != "cmp_old" {
		t.Fatalf("list order wrong: %+v", got)
	}
}

func TestFileStore_DeleteRemovesRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	if err := s.Commit(ctx, testSession("cmp_del")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "cmp_del"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "cmp_del"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "cmp_del"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}

func TestFileStore_Events(t *testing.T) {
	s := newTestFileStore(t)
	if err := s.AppendEvent("cmp_ev", Event{Type: "campaign_created"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendEvent("cmp_ev", Event{Type: "decision_applied", Data: map[string]any{"stage": "research"}}); err != nil {
		t.Fatal(err)
	}

	evs, err := s.ReadEvents("cmp_ev", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].Type != "campaign_created" {
		t.Fatalf("events = %+v", evs)
	}
	if evs[1].Data["stage"] != "research" {
		t.Fatalf("event data lost: %+v", evs[1])
	}

	limited, err := s.ReadEvents("cmp_ev", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %d", len(limited))
	}
}
