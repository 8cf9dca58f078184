// Package raft contains the sequenced serialization policy: a single-node,
// in-memory Raft log whose FSM applies store commands one at a time.
package raft

import (
	"encoding/json"
	"io"

	"github.com/hashicorp/raft"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ASHISH26940/heliokv/internal/store"
)

// FSM is a Finite State Machine that applies Raft logs to the key-value store.
// Raft calls Apply from a single goroutine, which is what gives sequenced mode
// its total order.
type FSM struct {
	store *store.Store
	lg    *zap.Logger
}

// NewFSM creates a new FSM over the given store.
func NewFSM(st *store.Store, lg *zap.Logger) *FSM {
	return &FSM{
		store: st,
		lg:    lg,
	}
}

// Apply decodes a command from the log entry and executes it. The returned
// value is either a store.Result or an error.
func (f *FSM) Apply(entry *raft.Log) interface{} {
	var cmd store.Command
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		f.lg.Error("failed to decode command", zap.Uint64("index", entry.Index), zap.Error(err))
		return errors.Wrap(err, "decode command")
	}
	f.lg.Debug("applying command", zap.Uint64("index", entry.Index), zap.Stringer("cmd", cmd))
	return f.store.Apply(cmd)
}

// Snapshot is used to support log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{state: f.store.Snapshot()}, nil
}

// Restore is used to restore an FSM from a snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var st store.State
	if err := json.NewDecoder(rc).Decode(&st); err != nil {
		return errors.Wrap(err, "decode snapshot")
	}
	f.store.Restore(st)
	return nil
}

type fsmSnapshot struct {
	state store.State
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.state); err != nil {
		sink.Cancel()
		return errors.Wrap(err, "encode snapshot")
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
