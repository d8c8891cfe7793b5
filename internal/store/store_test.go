package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/quest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestAccount(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.CreateAccount(name)
	if err != nil {
		t.Fatalf("createTestAccount: %v", err)
	}
	return id
}

func testResult(questID string, accountID int64, complete bool) model.AssessmentResult {
	return model.AssessmentResult{
		QuestID:           questID,
		AccountID:         accountID,
		Stakeholder:       model.StakeholderFounder,
		CurrentLevel:      "L1",
		AspirationalLevel: "L1",
		CurrentScore:      60,
		AspirationalScore: 90,
		Gap:               30,
		GleamsEarned:      80,
		AlicornsEarned:    0.8,
		Complete:          complete,
		Timestamp:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Responses: []model.LevelRecord{
			{Level: "L0", Score: 60, Gleams: 12, Alicorns: 0.12, Responses: model.AnswerMap{"a": 3, "b": 3}},
		},
	}
}

func TestAccountCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.AccountCount()
	if err != nil {
		t.Fatalf("AccountCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 accounts, got %d", count)
	}

	id := createTestAccount(t, s, "Ada")
	acct, err := s.GetAccount(id)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct == nil {
		t.Fatal("expected account, got nil")
	}
	if acct.DisplayName != "Ada" || acct.ExecutionScore != 0 || acct.TotalGleams != 0 {
		t.Errorf("unexpected account: %+v", acct)
	}

	// Not found.
	missing, err := s.GetAccount(9999)
	if err != nil {
		t.Fatalf("GetAccount missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing account, got %+v", missing)
	}
}

func TestSaveResultCreditsAccount(t *testing.T) {
	s := newTestStore(t)
	id := createTestAccount(t, s, "Ada")

	acct, err := s.SaveResult(testResult("q1", id, true))
	if err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if acct == nil {
		t.Fatal("expected credited account")
	}
	if acct.ExecutionScore != 150 || acct.TotalGleams != 80 || acct.TotalAlicorns != 0.8 {
		t.Errorf("unexpected totals after first credit: %+v", acct)
	}

	acct, err = s.SaveResult(testResult("q2", id, true))
	if err != nil {
		t.Fatalf("SaveResult second: %v", err)
	}
	if acct.ExecutionScore != 300 || acct.TotalGleams != 160 || acct.TotalAlicorns != 1.6 {
		t.Errorf("unexpected totals after second credit: %+v", acct)
	}

	stored, _ := s.GetAccount(id)
	if stored.ExecutionScore != 300 {
		t.Errorf("stored execution score = %d, want 300", stored.ExecutionScore)
	}
}

func TestSaveResultPartialDoesNotCredit(t *testing.T) {
	s := newTestStore(t)
	id := createTestAccount(t, s, "Ada")

	acct, err := s.SaveResult(testResult("q1", id, false))
	if err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if acct != nil {
		t.Errorf("partial result should not credit, got %+v", acct)
	}
	stored, _ := s.GetAccount(id)
	if stored.ExecutionScore != 0 {
		t.Errorf("execution score = %d, want 0", stored.ExecutionScore)
	}
}

func TestSaveResultUnknownAccountRollsBack(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveResult(testResult("q1", 42, true))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	r, err := s.GetResult("q1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if r != nil {
		t.Error("result should not be stored when crediting fails")
	}
}

func TestResultRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := testResult("q1", 0, false)
	if _, err := s.SaveResult(want); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := s.GetResult("q1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got == nil {
		t.Fatal("expected result")
	}
	if got.CurrentScore != 60 || got.AspirationalScore != 90 || got.Gap != 30 || got.Complete {
		t.Errorf("unexpected result: %+v", got)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, want.Timestamp)
	}
	if len(got.Responses) != 1 || got.Responses[0].Responses["a"] != 3 {
		t.Errorf("responses not restored: %+v", got.Responses)
	}

	// Results are written once.
	if _, err := s.SaveResult(want); err == nil {
		t.Error("expected error for duplicate quest id")
	}

	missing, err := s.GetResult("nope")
	if err != nil || missing != nil {
		t.Errorf("GetResult(nope) = %v, %v", missing, err)
	}
}

func TestListResults(t *testing.T) {
	s := newTestStore(t)
	id := createTestAccount(t, s, "Ada")
	_, _ = s.SaveResult(testResult("q1", id, true))
	_, _ = s.SaveResult(testResult("q2", id, false))
	_, _ = s.SaveResult(testResult("q3", 0, true))

	tests := []struct {
		name           string
		includePartial bool
		wantCount      int
	}{
		{"complete only", false, 2},
		{"with partial", true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := s.ListResults(tt.includePartial)
			if err != nil {
				t.Fatalf("ListResults: %v", err)
			}
			if len(rs) != tt.wantCount {
				t.Errorf("expected %d results, got %d", tt.wantCount, len(rs))
			}
		})
	}

	byAccount, err := s.ListResultsByAccount(id)
	if err != nil {
		t.Fatalf("ListResultsByAccount: %v", err)
	}
	if len(byAccount) != 2 {
		t.Errorf("expected 2 results for account, got %d", len(byAccount))
	}
	count, _ := s.ResultCount()
	if count != 3 {
		t.Errorf("ResultCount = %d, want 3", count)
	}
}

func TestLeaderboardQueries(t *testing.T) {
	s := newTestStore(t)
	a := createTestAccount(t, s, "A")
	b := createTestAccount(t, s, "B")
	c := createTestAccount(t, s, "C")
	_, _ = s.SaveResult(testResult("q1", b, true))
	_, _ = s.SaveResult(testResult("q2", b, true))
	_, _ = s.SaveResult(testResult("q3", c, true))

	top, err := s.ListAccountsByScore(2)
	if err != nil {
		t.Fatalf("ListAccountsByScore: %v", err)
	}
	if len(top) != 2 || top[0].ID != b || top[1].ID != c {
		t.Errorf("unexpected order: %+v", top)
	}

	tests := []struct {
		id   int64
		want int64
	}{
		{b, 1},
		{c, 2},
		{a, 3},
		{999, -1},
	}
	for _, tt := range tests {
		got, err := s.AccountRank(tt.id)
		if err != nil {
			t.Fatalf("AccountRank(%d): %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("AccountRank(%d) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestStore(t)

	snap := quest.Snapshot{
		ID:          "quest-1",
		State:       quest.StatePaused,
		Stakeholder: model.StakeholderInvestor,
		LevelIndex:  1,
		Answers: map[model.LevelPass]model.AnswerMap{
			{Level: "L1", Aspirational: false}: {"c": 4},
		},
	}
	if err := s.SaveSnapshot(7, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := s.GetSnapshot("quest-1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot")
	}
	if got.AccountID != 7 || got.Snapshot.State != quest.StatePaused || got.Snapshot.LevelIndex != 1 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	key := model.LevelPass{Level: "L1"}
	if got.Snapshot.Answers[key]["c"] != 4 {
		t.Errorf("answers not restored: %+v", got.Snapshot.Answers)
	}

	ids, err := s.ListResumable(7)
	if err != nil {
		t.Fatalf("ListResumable: %v", err)
	}
	if len(ids) != 1 || ids[0] != "quest-1" {
		t.Errorf("ListResumable = %v", ids)
	}

	// Upsert replaces the state.
	snap.State = quest.StateCompleted
	if err := s.SaveSnapshot(7, snap); err != nil {
		t.Fatalf("SaveSnapshot update: %v", err)
	}
	ids, _ = s.ListResumable(7)
	if len(ids) != 0 {
		t.Errorf("completed quest should not be resumable: %v", ids)
	}

	if err := s.DeleteSnapshot("quest-1"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	got, err = s.GetSnapshot("quest-1")
	if err != nil || got != nil {
		t.Errorf("expected nil after delete, got %v, %v", got, err)
	}

	if _, err := s.CleanupStaleSnapshots(); err != nil {
		t.Fatalf("CleanupStaleSnapshots: %v", err)
	}
}

func TestFinishQuest(t *testing.T) {
	s := newTestStore(t)
	id := createTestAccount(t, s, "Ada")
	snap := quest.Snapshot{ID: "q1", State: quest.StateInProgress, Stakeholder: model.StakeholderFounder}
	if err := s.SaveSnapshot(id, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	snap.State = quest.StateCompleted
	acct, err := s.FinishQuest(id, snap, testResult("q1", id, true))
	if err != nil {
		t.Fatalf("FinishQuest: %v", err)
	}
	if acct == nil || acct.ExecutionScore != 150 {
		t.Errorf("unexpected credited account: %+v", acct)
	}
	got, _ := s.GetSnapshot("q1")
	if got == nil || got.Snapshot.State != quest.StateCompleted {
		t.Errorf("snapshot not finished: %+v", got)
	}
	if r, _ := s.GetResult("q1"); r == nil {
		t.Error("expected stored result")
	}
}

func TestFinishQuestRollsBack(t *testing.T) {
	s := newTestStore(t)
	snap := quest.Snapshot{ID: "q1", State: quest.StateInProgress, Stakeholder: model.StakeholderFounder}
	if err := s.SaveSnapshot(42, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	snap.State = quest.StateCompleted
	_, err := s.FinishQuest(42, snap, testResult("q1", 42, true))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := s.GetSnapshot("q1")
	if got == nil || got.Snapshot.State != quest.StateInProgress {
		t.Errorf("snapshot should be unchanged: %+v", got)
	}
	if r, _ := s.GetResult("q1"); r != nil {
		t.Error("result should not be stored")
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata(MetaCatalogVersion)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty value, got %q", v)
	}

	if err := s.SetMetadata(MetaCatalogVersion, "abc"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(MetaCatalogVersion, "def"); err != nil {
		t.Fatalf("SetMetadata update: %v", err)
	}
	v, _ = s.GetMetadata(MetaCatalogVersion)
	if v != "def" {
		t.Errorf("expected def, got %q", v)
	}
}

func TestExportResults(t *testing.T) {
	s := newTestStore(t)
	_ = s.SetMetadata(MetaCatalogVersion, "v1")
	id := createTestAccount(t, s, "Ada")
	_, _ = s.SaveResult(testResult("q1", id, true))
	_, _ = s.SaveResult(testResult("q2", id, true))
	_, _ = s.SaveResult(testResult("q3", id, false))

	exp, err := s.ExportResults(false)
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if exp.CatalogVersion != "v1" || exp.NumResults != 2 {
		t.Errorf("unexpected export header: %+v", exp)
	}
	if exp.Results[0].DisplayName != "Ada" || exp.Results[1].QuestNumber != 2 {
		t.Errorf("unexpected export rows: %+v", exp.Results)
	}

	exp, _ = s.ExportResults(true)
	if exp.NumResults != 3 {
		t.Errorf("expected 3 results with partial, got %d", exp.NumResults)
	}
}
