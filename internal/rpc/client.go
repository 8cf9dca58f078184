package rpc

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote KeyValueService.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a heliokv gRPC endpoint. Extra options are appended to the
// defaults (plaintext transport, JSON codec).
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return &Client{conn: conn}, nil
}

// Update triggers one bump-and-restore cycle on the server.
func (c *Client) Update(ctx context.Context) error {
	return c.conn.Invoke(ctx, methodUpdate, &UpdateRequest{}, &UpdateResponse{})
}

// Read returns the server's counter.
func (c *Client) Read(ctx context.Context) (int64, error) {
	out := new(ReadResponse)
	if err := c.conn.Invoke(ctx, methodRead, &ReadRequest{}, out); err != nil {
		return 0, err
	}
	return out.Counter, nil
}

// HandleRequest sends one request line and returns the server's response text.
func (c *Client) HandleRequest(ctx context.Context, line string) (string, error) {
	out := new(LineResponse)
	if err := c.conn.Invoke(ctx, methodHandleRequest, &LineRequest{Line: line}, out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
