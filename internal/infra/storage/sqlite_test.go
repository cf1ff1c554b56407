package storage

import (
	"path/filepath"
	"testing"
)

func setupTestJournal(t *testing.T) *Journal {
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open test journal: %v", err)
	}
	t.Cleanup(func() {
		j.Close()
	})
	return j
}

func TestSaveAndListFills(t *testing.T) {
	j := setupTestJournal(t)

	fills := []*FillRecord{
		{ExecID: "e1", OrderID: "o1", Symbol: "BTCUSDT", Side: "Buy", Price: "100", Qty: "1", IsMaker: true, ExecTime: 1000},
		{ExecID: "e2", OrderID: "o1", Symbol: "BTCUSDT", Side: "Sell", Price: "110", Qty: "1", ExecTime: 2000},
	}
	for _, f := range fills {
		if err := j.SaveFill(f); err != nil {
			t.Fatalf("SaveFill(%s) failed: %v", f.ExecID, err)
		}
	}

	got, err := j.ListFills()
	if err != nil {
		t.Fatalf("ListFills failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(got))
	}
	if got[0].ExecID != "e1" || got[1].ExecID != "e2" {
		t.Errorf("fills out of insertion order: %s, %s", got[0].ExecID, got[1].ExecID)
	}
	if got[0].Price != "100" || !got[0].IsMaker {
		t.Errorf("fill fields not round-tripped: %+v", got[0])
	}
}

func TestSaveFillIgnoresDuplicates(t *testing.T) {
	j := setupTestJournal(t)

	fill := &FillRecord{ExecID: "e1", OrderID: "o1", Symbol: "BTCUSDT", Side: "Buy", Price: "100", Qty: "1"}
	if err := j.SaveFill(fill); err != nil {
		t.Fatalf("first SaveFill failed: %v", err)
	}

	// Redelivery of the same (OrderID, ExecID) pair is silently dropped.
	dup := &FillRecord{ExecID: "e1", OrderID: "o1", Symbol: "BTCUSDT", Side: "Buy", Price: "100", Qty: "1"}
	if err := j.SaveFill(dup); err != nil {
		t.Fatalf("duplicate SaveFill should be ignored, got: %v", err)
	}

	// Same execId under a different order is a distinct row.
	other := &FillRecord{ExecID: "e1", OrderID: "o2", Symbol: "BTCUSDT", Side: "Buy", Price: "100", Qty: "1"}
	if err := j.SaveFill(other); err != nil {
		t.Fatalf("SaveFill for distinct order failed: %v", err)
	}

	got, err := j.ListFills()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 fills after duplicate, got %d", len(got))
	}
}

func TestSessionSnapshots(t *testing.T) {
	j := setupTestJournal(t)

	// Empty journal has no snapshot.
	snap, err := j.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot on empty journal failed: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}

	if err := j.SaveSnapshot(&SessionSnapshot{Symbol: "BTCUSDT", Pnl: "-0.02", MaxPnl: "0", Drawdown: "0.02", Position: "1"}); err != nil {
		t.Fatal(err)
	}
	if err := j.SaveSnapshot(&SessionSnapshot{Symbol: "BTCUSDT", Pnl: "9.958", MaxPnl: "9.958", Drawdown: "0.02", Position: "0"}); err != nil {
		t.Fatal(err)
	}

	snap, err = j.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if snap == nil || snap.Pnl != "9.958" || snap.Position != "0" {
		t.Errorf("latest snapshot = %+v, want the second row", snap)
	}
}
