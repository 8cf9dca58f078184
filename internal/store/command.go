package store

import "fmt"

// Op names a single store operation.
type Op string

const (
	OpGet    Op = "GET"
	OpPut    Op = "PUT"
	OpDelete Op = "DELETE"
	OpBump   Op = "BUMP"
	OpRead   Op = "READ"
)

// Command represents a single store operation. It is what the serialization
// policies order, and what gets committed to the raft log in sequenced mode.
type Command struct {
	Op    Op     `json:"op"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

func (c Command) String() string {
	switch c.Op {
	case OpPut:
		return fmt.Sprintf("%s %s %s", c.Op, c.Key, c.Value)
	case OpGet, OpDelete:
		return fmt.Sprintf("%s %s", c.Op, c.Key)
	default:
		return string(c.Op)
	}
}

// Result is the outcome of applying a Command.
type Result struct {
	Value   string `json:"value,omitempty"`
	Found   bool   `json:"found"`
	Counter int64  `json:"counter"`
}

// Apply executes cmd against the store. Unknown ops are a no-op with a zero Result.
func (s *Store) Apply(cmd Command) Result {
	switch cmd.Op {
	case OpGet:
		v, ok := s.Get(cmd.Key)
		return Result{Value: v, Found: ok}
	case OpPut:
		s.Put(cmd.Key, cmd.Value)
		return Result{Value: cmd.Value, Found: true}
	case OpDelete:
		return Result{Found: s.Delete(cmd.Key)}
	case OpBump:
		s.BumpAndRestore()
		return Result{Counter: s.ReadCounter()}
	case OpRead:
		return Result{Counter: s.ReadCounter()}
	}
	return Result{}
}
