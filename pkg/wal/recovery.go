package wal

import (
	"fmt"
	"os"

	"github.com/nikhilrao/relstore/pkg/common"
)

// ReplayFunc applies one recovered page image to the data file.
type ReplayFunc func(pageID common.PageID, data []byte) error

// Recovery replays a WAL's page-write records against the data file
// after a crash, redoing every mutation logged since the last
// checkpoint.
type Recovery struct {
	wal *WAL
}

// NewRecovery creates a recovery manager over wal.
func NewRecovery(wal *WAL) *Recovery {
	return &Recovery{wal: wal}
}

// Recover replays every page write logged after the last checkpoint,
// in LSN order, calling replay for each.
func (r *Recovery) Recover(replay ReplayFunc) error {
	stats, err := r.RecoverWithStats(replay)
	_ = stats
	return err
}

// findLastCheckpoint returns the highest-LSN checkpoint entry, or nil
// if none exists.
func (r *Recovery) findLastCheckpoint(entries []*Entry) *Entry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].OpType == OpCheckpoint {
			return entries[i]
		}
	}
	return nil
}

// RecoveryStats summarizes one Recover pass.
type RecoveryStats struct {
	TotalEntries       int
	ReplayedPageWrites int
	LastCheckpointLSN  uint64
}

// RecoverWithStats performs recovery and returns statistics about what
// was replayed.
func (r *Recovery) RecoverWithStats(replay ReplayFunc) (*RecoveryStats, error) {
	stats := &RecoveryStats{}

	files, err := r.wal.findLogFiles()
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}

	entries, err := ReadAll(files)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL entries: %w", err)
	}
	stats.TotalEntries = len(entries)

	lastCheckpoint := r.findLastCheckpoint(entries)
	if lastCheckpoint != nil {
		stats.LastCheckpointLSN = lastCheckpoint.LSN
	}

	for _, entry := range entries {
		if entry.OpType != OpPageWrite {
			continue
		}
		if lastCheckpoint != nil && entry.LSN <= lastCheckpoint.LSN {
			continue
		}
		if err := replay(entry.PageID, entry.Data); err != nil {
			return stats, fmt.Errorf("replay failed at LSN %d: %w", entry.LSN, err)
		}
		stats.ReplayedPageWrites++
	}

	return stats, nil
}
