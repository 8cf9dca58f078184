// Package server_test contains the unit tests for the server package.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ASHISH26940/heliokv/internal/metrics"
	"github.com/ASHISH26940/heliokv/internal/service"
	"github.com/ASHISH26940/heliokv/internal/store"
)

func newTestServer(rounds int) (*Server, *store.Store) {
	st := store.New(rounds)
	m := metrics.New()
	svc := service.New(st, service.Synchronized.Locker(), service.WithMetrics(m))
	return New(svc, m, zap.NewNop()), st
}

func do(srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(method, path, r))
	return rr
}

func TestKVHandlers(t *testing.T) {
	srv, st := newTestServer(100)

	// --- Test Case 1: Put a new key ---
	rr := do(srv, http.MethodPut, "/kv/foo", "42")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Put [foo, 42] in store succeed")

	val, ok := st.Get("foo")
	require.True(t, ok, "expected key 'foo' to be set")
	assert.Equal(t, "42", val)

	// --- Test Case 2: Get the key ---
	rr = do(srv, http.MethodGet, "/kv/foo", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Value of foo: 42")

	// --- Test Case 3: Get a non-existent key ---
	rr = do(srv, http.MethodGet, "/kv/baz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "baz not found")

	// --- Test Case 4: Non-numeric value is rejected ---
	rr = do(srv, http.MethodPut, "/kv/foo", "bar")
	assert.Contains(t, rr.Body.String(), "numeric")
	val, _ = st.Get("foo")
	assert.Equal(t, "42", val)

	// --- Test Case 5: Delete the key ---
	rr = do(srv, http.MethodDelete, "/kv/foo", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Delete foo succeed")
	_, ok = st.Get("foo")
	assert.False(t, ok, "expected key 'foo' to be deleted")

	// --- Test Case 6: Keys with whitespace are refused ---
	rr = do(srv, http.MethodGet, "/kv/a%20b", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// --- Test Case 7: Oversized values are refused, not truncated ---
	rr = do(srv, http.MethodPut, "/kv/k", "7"+strings.Repeat(" ", maxLineBytes)+"junk")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	_, ok = st.Get("k")
	assert.False(t, ok, "oversized put must not store a value")

	// --- Test Case 8: Extra tokens in the value are a malformed put ---
	rr = do(srv, http.MethodPut, "/kv/k", "7 junk")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Syntax of put")
	_, ok = st.Get("k")
	assert.False(t, ok)
}

func TestRequestAndCounterHandlers(t *testing.T) {
	srv, _ := newTestServer(100)

	rr := do(srv, http.MethodPost, "/request", "put apple 10")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "succeed")

	rr = do(srv, http.MethodPost, "/request", "frobnicate apple")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Malformed Request")

	rr = do(srv, http.MethodPost, "/request", strings.Repeat("x", maxLineBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = do(srv, http.MethodPost, "/update", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(srv, http.MethodGet, "/read", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var read map[string]int64
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&read))
	assert.EqualValues(t, 0, read["counter"])

	rr = do(srv, http.MethodGet, "/update", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(10)
	do(srv, http.MethodPost, "/request", "put a 1")
	do(srv, http.MethodGet, "/read", "")

	rr := do(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "synchronized", health["mode"])
	assert.EqualValues(t, 1, health["keys"])

	rr = do(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `heliokv_requests_total{op="PUT",outcome="ok"} 1`)
	assert.Contains(t, rr.Body.String(), `heliokv_counter_reads_total{observed="zero"} 1`)
}

type mockService struct {
	mock.Mock
}

func (m *mockService) Update() error {
	return m.Called().Error(0)
}

func (m *mockService) Read() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockService) HandleRequest(line string) string {
	return m.Called(line).String(0)
}

func (m *mockService) Policy() service.Policy { return service.Sequenced }
func (m *mockService) Len() int               { return 0 }

func TestServiceFailures(t *testing.T) {
	svc := new(mockService)
	svc.On("Update").Return(errors.New("no leader"))
	svc.On("Read").Return(int64(0), errors.New("no leader"))
	svc.On("HandleRequest", "get apple").Panic("boom")
	srv := New(svc, metrics.New(), zap.NewNop())

	rr := do(srv, http.MethodPost, "/update", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "no leader")

	rr = do(srv, http.MethodGet, "/read", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = do(srv, http.MethodGet, "/kv/apple", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	svc.AssertExpectations(t)
}

func TestServerLifecycle(t *testing.T) {
	srv, _ := newTestServer(10)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	url := "http://" + lis.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(url+"/request", "text/plain", strings.NewReader("put apple 10"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "succeed")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerStopBeforeServe(t *testing.T) {
	srv, _ := newTestServer(10)
	require.NoError(t, srv.Stop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, srv.Serve(context.Background(), lis))
}
