package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/alicorn/internal/catalog"
	"github.com/pavelanni/alicorn/internal/leaderboard"
	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordCatalogVersion(t *testing.T) {
	db := newTestStore(t)
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}

	if err := db.SetMetadata(store.MetaCatalogVersion, "old"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := recordCatalogVersion(db, cat); err != nil {
		t.Fatalf("recordCatalogVersion: %v", err)
	}
	got, _ := db.GetMetadata(store.MetaCatalogVersion)
	if got != cat.Version() {
		t.Errorf("stored version = %q, want %q", got, cat.Version())
	}
}

func TestSeedAdmin(t *testing.T) {
	db := newTestStore(t)

	if err := seedAdmin(db, ""); err != nil {
		t.Fatalf("seedAdmin without password: %v", err)
	}
	if h, _ := db.GetMetadata(store.MetaAdminPasswordHash); h != "" {
		t.Fatal("expected no hash without a password")
	}

	if err := seedAdmin(db, "secret"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	first, _ := db.GetMetadata(store.MetaAdminPasswordHash)
	if first == "" || first == "secret" {
		t.Fatalf("expected bcrypt hash, got %q", first)
	}

	// An existing hash is never replaced.
	if err := seedAdmin(db, "other"); err != nil {
		t.Fatalf("seedAdmin again: %v", err)
	}
	second, _ := db.GetMetadata(store.MetaAdminPasswordHash)
	if second != first {
		t.Error("admin hash was replaced")
	}
}

type recordingBoard struct {
	scores map[int64]int
}

func (b *recordingBoard) Record(_ context.Context, id int64, score int) error {
	b.scores[id] = score
	return nil
}

func (b *recordingBoard) Top(context.Context, int) ([]leaderboard.Entry, error) { return nil, nil }

func (b *recordingBoard) Rank(context.Context, int64) (int64, error) { return -1, nil }

func TestSyncLeaderboard(t *testing.T) {
	db := newTestStore(t)
	id, _ := db.CreateAccount("Ada")
	_, err := db.SaveResult(model.AssessmentResult{
		QuestID:      "q1",
		AccountID:    id,
		Stakeholder:  model.StakeholderFounder,
		CurrentScore: 70,
		Complete:     true,
		Timestamp:    time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	other, _ := db.CreateAccount("Bob")

	b := &recordingBoard{scores: map[int64]int{}}
	if err := syncLeaderboard(context.Background(), db, b); err != nil {
		t.Fatalf("syncLeaderboard: %v", err)
	}
	if b.scores[id] != 70 || b.scores[other] != 0 || len(b.scores) != 2 {
		t.Errorf("unexpected synced scores: %v", b.scores)
	}
}

func TestPrintCatalog(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	var buf bytes.Buffer
	if err := printCatalog(&buf, cat, model.StakeholderInvestor); err != nil {
		t.Fatalf("printCatalog: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, cat.Version()) || !strings.Contains(out, "stakeholder investor") {
		t.Errorf("missing header in output:\n%s", out)
	}
	for _, lvl := range cat.Levels() {
		if !strings.Contains(out, lvl.ID+" "+lvl.Name) {
			t.Errorf("level %s missing from output", lvl.ID)
		}
	}
}

func TestMeritCommand(t *testing.T) {
	cmd := rootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"merit", "--score", "450"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"merit_level": "L2"`) || !strings.Contains(out, `"next_level_threshold": 600`) {
		t.Errorf("unexpected merit output:\n%s", out)
	}
}
