// Package rpc exposes a KeyValueService over gRPC. Messages are plain Go
// structs carried by a JSON codec, so no generated protobuf code is needed.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// UpdateRequest asks for one bump-and-restore cycle.
type UpdateRequest struct{}

// UpdateResponse acknowledges an update.
type UpdateResponse struct{}

// ReadRequest asks for the counter value.
type ReadRequest struct{}

// ReadResponse carries the counter value.
type ReadResponse struct {
	Counter int64 `json:"counter"`
}

// LineRequest carries one get/put/delete request line.
type LineRequest struct {
	Line string `json:"line"`
}

// LineResponse carries the text produced for a request line.
type LineResponse struct {
	Response string `json:"response"`
}
