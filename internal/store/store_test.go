// Package store_test contains the unit tests for the store package.
package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Lifecycle tests put, overwrite, get and delete on an idle store.
func TestStore_Lifecycle(t *testing.T) {
	s := NewStore()
	key := "apple"

	// 1. Get a non-existent key
	_, ok := s.Get(key)
	assert.False(t, ok, "expected key %q to not exist", key)

	// 2. Put then get
	s.Put(key, "10")
	v, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "10", v)

	// 3. Overwrite
	s.Put(key, "11")
	v, ok = s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "11", v)
	assert.Equal(t, 1, s.Len())

	// 4. Delete, then get reports not found
	assert.True(t, s.Delete(key))
	_, ok = s.Get(key)
	assert.False(t, ok, "expected key %q to be deleted", key)
}

func TestStore_DeleteTwice(t *testing.T) {
	s := NewStore()
	s.Put("pear", "3")
	s.Put("plum", "4")

	assert.True(t, s.Delete("pear"))
	assert.False(t, s.Delete("pear"))

	// absent key leaves the map unchanged
	assert.False(t, s.Delete("kiwi"))
	assert.Equal(t, 1, s.Len())
	v, ok := s.Get("plum")
	require.True(t, ok)
	assert.Equal(t, "4", v)
}

func TestStore_BumpAndRestore(t *testing.T) {
	s := New(1000)
	assert.Equal(t, 1000, s.Rounds())
	assert.EqualValues(t, 0, s.ReadCounter())

	s.BumpAndRestore()
	s.BumpAndRestore()
	assert.EqualValues(t, 0, s.ReadCounter())
}

func TestStore_DefaultRounds(t *testing.T) {
	assert.Equal(t, DefaultRounds, New(0).Rounds())
	assert.Equal(t, DefaultRounds, New(-5).Rounds())
	assert.Equal(t, DefaultRounds, NewStore().Rounds())
}

func TestStore_Apply(t *testing.T) {
	s := New(10)

	res := s.Apply(Command{Op: OpPut, Key: "apple", Value: "10"})
	assert.True(t, res.Found)

	res = s.Apply(Command{Op: OpGet, Key: "apple"})
	assert.Equal(t, Result{Value: "10", Found: true}, res)

	res = s.Apply(Command{Op: OpDelete, Key: "apple"})
	assert.True(t, res.Found)
	res = s.Apply(Command{Op: OpDelete, Key: "apple"})
	assert.False(t, res.Found)

	res = s.Apply(Command{Op: OpBump})
	assert.EqualValues(t, 0, res.Counter)
	res = s.Apply(Command{Op: OpRead})
	assert.EqualValues(t, 0, res.Counter)

	assert.Equal(t, Result{}, s.Apply(Command{Op: "FROB"}))
}

func TestStore_SnapshotRestore(t *testing.T) {
	s := New(10)
	s.Put("a", "1")
	s.Put("b", "2")

	st := s.Snapshot()
	s.Put("a", "100")
	assert.Equal(t, "1", st.Data["a"], "snapshot must not alias the live map")

	other := New(10)
	other.Restore(st)
	v, ok := other.Get("b")
	require.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, 2, other.Len())
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "PUT apple 10", Command{Op: OpPut, Key: "apple", Value: "10"}.String())
	assert.Equal(t, "GET apple", Command{Op: OpGet, Key: "apple"}.String())
	assert.Equal(t, "BUMP", Command{Op: OpBump}.String())
}

// TestStore_Concurrency hammers the map from many goroutines; run with -race.
func TestStore_Concurrency(t *testing.T) {
	s := New(100)
	var wg sync.WaitGroup
	numGoroutines := 100
	numOperations := 999

	s.Put("initial_key", "1")

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				key := fmt.Sprintf("key_%d_%d", goroutineID, j)
				switch j % 3 {
				case 0:
					s.Put(key, "1")
				case 1:
					s.Get("initial_key")
				default:
					s.Delete(fmt.Sprintf("key_%d_%d", goroutineID, j-2))
				}
			}
		}(i)
	}
	wg.Wait()

	v, ok := s.Get("initial_key")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 1, s.Len())
}
