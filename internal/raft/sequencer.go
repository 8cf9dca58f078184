package raft

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ASHISH26940/heliokv/internal/store"
)

// Options tunes the sequencer's Raft node.
type Options struct {
	NodeID           string
	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration
	CommitTimeout    time.Duration
	ApplyTimeout     time.Duration
	// LogOutput receives Raft's own log lines; nil discards them.
	LogOutput io.Writer
}

// Sequencer orders store commands through a bootstrapped single-voter Raft
// cluster that lives entirely in memory.
type Sequencer struct {
	raft      *raft.Raft
	transport *raft.InmemTransport
	timeout   time.Duration
	lg        *zap.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewSequencer starts the Raft node and blocks until it is leader or ctx ends.
func NewSequencer(ctx context.Context, st *store.Store, opts Options, lg *zap.Logger) (*Sequencer, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	conf := raft.DefaultConfig()
	conf.LocalID = raft.ServerID(opts.NodeID)
	if opts.HeartbeatTimeout > 0 {
		conf.HeartbeatTimeout = opts.HeartbeatTimeout
		conf.LeaderLeaseTimeout = opts.HeartbeatTimeout
	}
	if opts.ElectionTimeout > 0 {
		conf.ElectionTimeout = opts.ElectionTimeout
	}
	if opts.CommitTimeout > 0 {
		conf.CommitTimeout = opts.CommitTimeout
	}
	conf.LogOutput = opts.LogOutput
	if conf.LogOutput == nil {
		conf.LogOutput = io.Discard
	}
	conf.LogLevel = "WARN"
	if err := raft.ValidateConfig(conf); err != nil {
		return nil, errors.Wrap(err, "invalid raft config")
	}

	timeout := opts.ApplyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	logs := raft.NewInmemStore()
	snaps := raft.NewInmemSnapshotStore()
	addr, transport := raft.NewInmemTransport("")

	r, err := raft.NewRaft(conf, NewFSM(st, lg), logs, logs, snaps, transport)
	if err != nil {
		transport.Close()
		return nil, errors.Wrap(err, "create raft node")
	}
	s := &Sequencer{raft: r, transport: transport, timeout: timeout, lg: lg}

	bootstrap := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: conf.LocalID, Address: addr}},
	})
	if err := bootstrap.Error(); err != nil {
		s.Shutdown()
		return nil, errors.Wrap(err, "bootstrap raft cluster")
	}
	if err := s.waitForLeader(ctx); err != nil {
		s.Shutdown()
		return nil, err
	}
	lg.Info("sequencer is leader", zap.String("node_id", opts.NodeID), zap.String("addr", string(addr)))
	return s, nil
}

func (s *Sequencer) waitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.raft.State() == raft.Leader {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for raft leadership")
		case <-ticker.C:
		}
	}
}

// Apply commits cmd to the log and returns the result of applying it.
// Reads are committed too, so they are ordered with the writes around them.
func (s *Sequencer) Apply(cmd store.Command) (store.Result, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return store.Result{}, errors.Wrap(err, "encode command")
	}

	future := s.raft.Apply(data, s.timeout)
	if err := future.Error(); err != nil {
		return store.Result{}, errors.Wrap(err, "commit command")
	}
	switch resp := future.Response().(type) {
	case store.Result:
		return resp, nil
	case error:
		return store.Result{}, resp
	default:
		return store.Result{}, errors.Errorf("unexpected FSM response %T", resp)
	}
}

// Shutdown stops the Raft node and closes its transport. It is safe to call
// more than once.
func (s *Sequencer) Shutdown() error {
	s.shutdownOnce.Do(func() {
		err := s.raft.Shutdown().Error()
		if cerr := s.transport.Close(); err == nil {
			err = cerr
		}
		s.shutdownErr = errors.Wrap(err, "shutdown sequencer")
	})
	return s.shutdownErr
}
