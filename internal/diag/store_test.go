package diag

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "diag.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(conversationID string, at time.Time) TurnRecord {
	return TurnRecord{
		TurnID:         uuid.NewString(),
		ConversationID: conversationID,
		Utterance:      "the rating is 3 stars",
		Intent:         "assessment",
		IntentScore:    0.82,
		Signals: []FiredSignal{
			{RuleID: "rating-statement", Category: "assessment", Priority: "high", Confidence: 1.0, Source: "lexical"},
		},
		Situation: map[string]float64{"assessment": 0.4, "discovery": 0.3},
		Knowledge: map[string]float64{"quality_rating": 0.6},
		Selected: []SelectedBehavior{
			{BehaviorID: "acknowledge-rating", Type: "reactive", Score: 4.2, TokenBudget: 150},
			{BehaviorID: "probe-rating-detail", Type: "proactive", Score: 2.1, TokenBudget: 100},
		},
		TotalTokens: 250,
		Drift:       0.0,
		CreatedAt:   at,
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	want := testRecord("conv-1", base)
	if err := store.Record(want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	records, err := store.Recent("conv-1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if got.TurnID != want.TurnID || got.Intent != "assessment" || got.IntentScore != 0.82 {
		t.Fatalf("record mismatch: %+v", got)
	}
	if len(got.Signals) != 1 || got.Signals[0].RuleID != "rating-statement" {
		t.Fatalf("signals not round-tripped: %+v", got.Signals)
	}
	if got.Situation["assessment"] != 0.4 {
		t.Fatalf("situation not round-tripped: %+v", got.Situation)
	}
	if got.Knowledge["quality_rating"] != 0.6 {
		t.Fatalf("knowledge not round-tripped: %+v", got.Knowledge)
	}
	if len(got.Selected) != 2 || got.Selected[0].Score != 4.2 {
		t.Fatalf("selections not round-tripped: %+v", got.Selected)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, base)
	}
}

func TestRecent_NewestFirstAndFiltered(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	old := testRecord("conv-1", base)
	mid := testRecord("conv-2", base.Add(time.Minute))
	newest := testRecord("conv-1", base.Add(2*time.Minute))
	for _, rec := range []TurnRecord{old, mid, newest} {
		if err := store.Record(rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := store.Recent("conv-1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].TurnID != newest.TurnID || records[1].TurnID != old.TurnID {
		t.Fatal("records not newest first")
	}

	all, err := store.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d records across conversations, want 3", len(all))
	}

	one, err := store.Recent("", 1)
	if err != nil {
		t.Fatalf("Recent limit: %v", err)
	}
	if len(one) != 1 || one[0].TurnID != newest.TurnID {
		t.Fatalf("limit not applied: %+v", one)
	}
}

func TestConversations(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Record(testRecord("conv-a", base)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(testRecord("conv-b", base.Add(time.Minute))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	ids, err := store.Conversations()
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(ids) != 2 || ids[0] != "conv-b" || ids[1] != "conv-a" {
		t.Fatalf("conversations wrong or misordered: %v", ids)
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *Store
	if err := store.Record(testRecord("conv", time.Now())); err != nil {
		t.Fatalf("nil Record: %v", err)
	}
	if recs, err := store.Recent("", 5); err != nil || recs != nil {
		t.Fatalf("nil Recent: %v %v", recs, err)
	}
	if ids, err := store.Conversations(); err != nil || ids != nil {
		t.Fatalf("nil Conversations: %v %v", ids, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}
