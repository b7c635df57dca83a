// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoService struct{}

func (echoService) Echo(r *http.Request, args *PathArgs, reply *string) error {
	*reply = r.Header.Get("X-Lab") + "|" + r.URL.Query().Get("token") + "|" + args.Path
	return nil
}

func newEchoServer(t *testing.T) *url.URL {
	t.Helper()
	s := rpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	require.NoError(t, s.RegisterService(echoService{}, "Echo"))
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	uri, err := url.Parse(ts.URL)
	require.NoError(t, err)
	return uri
}

func TestSendJSONRequestOptions(t *testing.T) {
	uri := newEchoServer(t)

	var reply string
	err := SendJSONRequest(context.Background(), uri, "Echo.Echo", PathArgs{Path: "a.b"}, &reply,
		WithHeader("X-Lab", "B12"),
		WithQueryParam("token", "t0"),
	)
	require.NoError(t, err)
	assert.Equal(t, "B12|t0|a.b", reply)
	assert.Empty(t, uri.RawQuery, "caller's URL must not be modified")
}

func TestSendJSONRequestStatus(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	uri, err := url.Parse(ts.URL)
	require.NoError(t, err)

	var reply string
	err = SendJSONRequest(context.Background(), uri, "Echo.Echo", PathArgs{}, &reply)
	assert.ErrorContains(t, err, "received status code: 503")
	assert.Equal(t, int32(1), hits.Load(), "status errors are not retried")
}

func TestSendJSONRequestRetriesRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	uri, err := url.Parse(ts.URL)
	require.NoError(t, err)
	ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	err = SendJSONRequest(ctx, uri, "Echo.Echo", PathArgs{}, new(string))
	require.Error(t, err)
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.GreaterOrEqual(t, time.Since(start), retryBaseWait)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.True(t, isRetryableError(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}))
	assert.True(t, isRetryableError(fmt.Errorf("post: %w", syscall.ECONNREFUSED)))
	assert.False(t, isRetryableError(errors.New("read: connection reset by peer")))
	assert.False(t, isRetryableError(errors.New("unexpected EOF")))
	assert.False(t, isRetryableError(&net.OpError{Op: "read", Net: "tcp", Err: io.EOF}))
}

func TestSendJSONRequestDroppedCallRunsOnce(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer ts.Close()
	uri, err := url.Parse(ts.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = SendJSONRequest(ctx, uri, "Bridge.RemoteCall", CallArgs{Path: "reset"}, new(any))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "attempts")
	assert.Equal(t, int32(1), hits.Load())
}

func TestJSONServerRejectsRaw(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", WithServerTransport(TransportJSON))
	require.NoError(t, err)
	defer srv.Close()

	err = srv.RegisterRaw("get_param", nil)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, isBroadcaster := srv.(Broadcaster)
	assert.False(t, isBroadcaster)
}
