// Package service translates request lines into store operations and formats
// the human-readable responses sent back to remote callers. Every store
// access goes through one serialization point, selected at construction.
package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ASHISH26940/heliokv/internal/metrics"
	"github.com/ASHISH26940/heliokv/internal/store"
)

// KeyValueService is the capability a transport exposes to remote clients.
type KeyValueService interface {
	// Update runs one bump-and-restore cycle on the counter.
	Update() error
	// Read returns the current counter value.
	Read() (int64, error)
	// HandleRequest executes one get/put/delete request line and returns
	// the response text. Protocol errors are reported in the text.
	HandleRequest(line string) string
}

// Sequencer applies store commands in a single total order of its own.
type Sequencer interface {
	Apply(cmd store.Command) (store.Result, error)
}

// Service is the KeyValueService implementation backed by a Store.
type Service struct {
	store   *store.Store
	mu      sync.Locker
	seq     Sequencer
	policy  Policy
	now     func() time.Time
	lg      *zap.Logger
	metrics *metrics.Metrics
}

var _ KeyValueService = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to timestamp responses.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Service) { s.lg = lg }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSequencer routes every store access through seq instead of applying
// it directly under the locker.
func WithSequencer(seq Sequencer) Option {
	return func(s *Service) {
		s.seq = seq
		s.policy = Sequenced
	}
}

// New returns a Service over st. mu is held around every direct store access;
// pass a *sync.Mutex for synchronized mode or NopLocker for unsynchronized mode.
// A nil mu means a fresh mutex.
func New(st *store.Store, mu sync.Locker, opts ...Option) *Service {
	s := &Service{
		store:  st,
		mu:     mu,
		policy: Synchronized,
		now:    time.Now,
		lg:     zap.NewNop(),
	}
	if mu == nil {
		s.mu = &sync.Mutex{}
	}
	switch s.mu.(type) {
	case NopLocker, *NopLocker:
		s.policy = Unsynchronized
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// Policy reports the serialization policy in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// Len returns the number of keys in the underlying store.
func (s *Service) Len() int {
	return s.store.Len()
}

// execute is the single serialization point for store access.
func (s *Service) execute(cmd store.Command) (store.Result, error) {
	if s.seq != nil {
		res, err := s.seq.Apply(cmd)
		return res, errors.Wrapf(err, "sequence %s", cmd.Op)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Apply(cmd), nil
}

// Update runs one bump-and-restore cycle inside the critical section.
func (s *Service) Update() error {
	start := time.Now()
	id := uuid.NewString()
	s.lg.Debug("entering critical section", zap.String("request_id", id), zap.Stringer("policy", s.policy))
	if _, err := s.execute(store.Command{Op: store.OpBump}); err != nil {
		s.lg.Warn("update failed", zap.String("request_id", id), zap.Error(err))
		return err
	}
	s.lg.Debug("leaving critical section", zap.String("request_id", id))
	s.metrics.ObserveUpdate(time.Since(start))
	return nil
}

// Read returns the counter as seen from inside the critical section.
func (s *Service) Read() (int64, error) {
	res, err := s.execute(store.Command{Op: store.OpRead})
	if err != nil {
		return 0, err
	}
	s.metrics.ObserveCounterRead(res.Counter)
	return res.Counter, nil
}

// HandleRequest parses, validates and executes one request line.
func (s *Service) HandleRequest(line string) string {
	start := time.Now()
	id := uuid.NewString()
	resp, op, outcome := s.handle(line)
	s.metrics.ObserveRequest(op, outcome, time.Since(start))
	s.lg.Debug("handled request",
		zap.String("request_id", id),
		zap.String("line", line),
		zap.String("outcome", outcome),
		zap.Duration("took", time.Since(start)))
	return resp
}

func (s *Service) handle(line string) (resp, op, outcome string) {
	req, err := ParseRequest(line)
	if err != nil {
		resp, outcome = s.rejection(err)
		return resp, "unknown", outcome
	}
	op = string(req.Op)
	if err := req.Validate(); err != nil {
		resp, outcome = s.rejection(err)
		return resp, op, outcome
	}

	res, err := s.execute(req.Command())
	if err != nil {
		s.lg.Warn("request failed", zap.String("line", line), zap.Error(err))
		return s.failed(err), op, metrics.OutcomeError
	}

	switch req.Op {
	case store.OpGet:
		if !res.Found {
			return s.notFound(req.Key), op, metrics.OutcomeNotFound
		}
		return s.found(req.Key, res.Value), op, metrics.OutcomeOK
	case store.OpDelete:
		if !res.Found {
			return s.notFound(req.Key), op, metrics.OutcomeNotFound
		}
		s.metrics.SetKeys(s.store.Len())
		return s.deleted(req.Key), op, metrics.OutcomeOK
	default:
		s.metrics.SetKeys(s.store.Len())
		return s.stored(req.Key, req.Value), op, metrics.OutcomeOK
	}
}
