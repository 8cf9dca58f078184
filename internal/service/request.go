package service

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ASHISH26940/heliokv/internal/store"
)

// Protocol and validation errors. They never leave the service as Go errors;
// HandleRequest turns them into response strings.
var (
	ErrMalformed  = errors.New("malformed request")
	ErrPutSyntax  = errors.New("malformed put request")
	ErrNotNumeric = errors.New("value should be numeric")
)

// Request is one parsed request line.
type Request struct {
	Op    store.Op
	Key   string
	Value string
}

// ParseRequest tokenizes a request line of the form
//
//	get <key>
//	delete <key>
//	put <key> <value>
//
// The operation is case-insensitive; keys and values are taken verbatim.
// Tokens after the key of a get or delete are ignored.
func ParseRequest(line string) (Request, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return Request{}, errors.Wrapf(ErrMalformed, "expected at least 2 tokens, got %d", len(tokens))
	}

	op, key := strings.ToLower(tokens[0]), tokens[1]
	switch op {
	case "get":
		return Request{Op: store.OpGet, Key: key}, nil
	case "delete":
		return Request{Op: store.OpDelete, Key: key}, nil
	case "put":
		if len(tokens) != 3 {
			return Request{}, errors.Wrapf(ErrPutSyntax, "expected 3 tokens, got %d", len(tokens))
		}
		return Request{Op: store.OpPut, Key: key, Value: tokens[2]}, nil
	}
	return Request{}, errors.Wrapf(ErrMalformed, "unknown operation %q", op)
}

// Validate checks the operands of a parsed request. A put value must be a
// 32-bit signed integer.
func (r Request) Validate() error {
	if r.Op == store.OpPut && !isNumeric(r.Value) {
		return errors.Wrapf(ErrNotNumeric, "value %q", r.Value)
	}
	return nil
}

// Command converts the request into the store command it executes.
func (r Request) Command() store.Command {
	return store.Command{Op: r.Op, Key: r.Key, Value: r.Value}
}

func isNumeric(s string) bool {
	_, err := strconv.ParseInt(s, 10, 32)
	return err == nil
}
