package service

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ASHISH26940/heliokv/internal/config"
)

// Policy selects how concurrent requests are serialized against the store.
type Policy int

const (
	// Synchronized runs every store access under one mutex.
	Synchronized Policy = iota
	// Unsynchronized applies no exclusion; bump-and-restore cycles interleave.
	Unsynchronized
	// Sequenced orders every store access through a replicated log.
	Sequenced
)

// ParsePolicy maps a configured mode name to a Policy.
func ParsePolicy(mode string) (Policy, error) {
	switch mode {
	case config.ModeSynchronized:
		return Synchronized, nil
	case config.ModeUnsynchronized:
		return Unsynchronized, nil
	case config.ModeSequenced:
		return Sequenced, nil
	}
	return 0, errors.Errorf("unknown serialization mode %q", mode)
}

func (p Policy) String() string {
	switch p {
	case Synchronized:
		return config.ModeSynchronized
	case Unsynchronized:
		return config.ModeUnsynchronized
	case Sequenced:
		return config.ModeSequenced
	}
	return "unknown"
}

// Locker returns the lock the policy injects into a Service. Only
// Synchronized gets a real mutex: Sequenced is already totally ordered by its
// log and Unsynchronized must not exclude anything.
func (p Policy) Locker() sync.Locker {
	if p == Synchronized {
		return &sync.Mutex{}
	}
	return NopLocker{}
}

// NopLocker is a sync.Locker that never blocks.
type NopLocker struct{}

func (NopLocker) Lock()   {}
func (NopLocker) Unlock() {}
