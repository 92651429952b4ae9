package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nikhilrao/relstore/pkg/common"
)

func TestRecoveryReplaysPageWrites(t *testing.T) {
	dir, err := os.MkdirTemp("", "wal-recovery-replay-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	walPath := filepath.Join(dir, "test.wal")
	w := &WAL{Path: walPath}
	if err := w.Open(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := w.AppendRecord(common.PageID(i), []byte(fmt.Sprintf("page-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	w.Flush()
	w.Close()

	w2 := &WAL{Path: walPath}
	w2.Open()
	defer w2.Close()

	recovery := NewRecovery(w2)
	replayed := make(map[common.PageID]string)

	err = recovery.Recover(func(pageID common.PageID, data []byte) error {
		replayed[pageID] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(replayed) != 3 {
		t.Errorf("expected 3 replayed page writes, got %d", len(replayed))
	}
	for i := 0; i < 3; i++ {
		if replayed[common.PageID(i)] != fmt.Sprintf("page-%d", i) {
			t.Errorf("page %d: got %q", i, replayed[common.PageID(i)])
		}
	}
}

func TestRecoveryAfterCheckpoint(t *testing.T) {
	dir, err := os.MkdirTemp("", "wal-recovery-checkpoint-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	walPath := filepath.Join(dir, "test.wal")
	w := &WAL{Path: walPath}
	if err := w.Open(); err != nil {
		t.Fatal(err)
	}

	w.AppendRecord(common.PageID(0), []byte("before-checkpoint"))
	w.Write(Entry{LSN: w.NextLSN(), OpType: OpCheckpoint})
	w.AppendRecord(common.PageID(1), []byte("after-checkpoint"))

	w.Flush()
	w.Close()

	w2 := &WAL{Path: walPath}
	w2.Open()
	defer w2.Close()

	recovery := NewRecovery(w2)
	replayed := make(map[common.PageID]string)

	err = recovery.Recover(func(pageID common.PageID, data []byte) error {
		replayed[pageID] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, exists := replayed[common.PageID(0)]; exists {
		t.Errorf("page write before checkpoint should not be replayed")
	}
	if replayed[common.PageID(1)] != "after-checkpoint" {
		t.Errorf("page write after checkpoint should be replayed")
	}
}

func TestRecoveryWithStats(t *testing.T) {
	dir, err := os.MkdirTemp("", "wal-recovery-stats-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	walPath := filepath.Join(dir, "test.wal")
	w := &WAL{Path: walPath}
	if err := w.Open(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		w.AppendRecord(common.PageID(i), []byte(fmt.Sprintf("page-%d", i)))
	}
	checkpointLSN := w.NextLSN()
	w.Write(Entry{LSN: checkpointLSN, OpType: OpCheckpoint})
	w.AppendRecord(common.PageID(3), []byte("page-3"))

	w.Flush()
	w.Close()

	w2 := &WAL{Path: walPath}
	w2.Open()
	defer w2.Close()

	recovery := NewRecovery(w2)
	stats, err := recovery.RecoverWithStats(func(pageID common.PageID, data []byte) error {
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if stats.LastCheckpointLSN != checkpointLSN {
		t.Errorf("expected last checkpoint LSN %d, got %d", checkpointLSN, stats.LastCheckpointLSN)
	}
	if stats.ReplayedPageWrites != 1 {
		t.Errorf("expected 1 replayed page write, got %d", stats.ReplayedPageWrites)
	}
	if stats.TotalEntries != 5 {
		t.Errorf("expected 5 total entries, got %d", stats.TotalEntries)
	}
}

func TestRecoveryEmptyWAL(t *testing.T) {
	dir, err := os.MkdirTemp("", "wal-recovery-empty-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	walPath := filepath.Join(dir, "test.wal")
	w := &WAL{Path: walPath}
	if err := w.Open(); err != nil {
		t.Fatal(err)
	}
	w.Close()

	w2 := &WAL{Path: walPath}
	if err := w2.Open(); err != nil {
		t.Fatal(err)
	}
	defer w2.Close()

	recovery := NewRecovery(w2)
	err = recovery.Recover(func(pageID common.PageID, data []byte) error {
		t.Error("should not replay any operations for empty WAL")
		return nil
	})
	if err != nil {
		t.Errorf("recovery of empty WAL should succeed, got error: %v", err)
	}
}
