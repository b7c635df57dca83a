// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

// JSONPath is where the JSON-RPC endpoint is mounted.
const JSONPath = "/rpc"

func dialJSON(_ context.Context, addr string, o *dialOptions) (Client, error) {
	uri, err := url.Parse("http://" + addr + JSONPath)
	if err != nil {
		return nil, fmt.Errorf("json dial: %w", err)
	}
	return &jsonClient{uri: uri, opts: o.http}, nil
}

// jsonClient implements Client over JSON-RPC 2.0 requests. It keeps no
// connection, so server pushes are never delivered.
type jsonClient struct {
	uri  *url.URL
	opts []Option
}

func (c *jsonClient) Call(ctx context.Context, method string, args, reply any) error {
	return SendJSONRequest(ctx, c.uri, method, args, reply, c.opts...)
}

func (c *jsonClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var params any
	if len(payload) > 0 {
		params = json.RawMessage(payload)
	}
	var reply json.RawMessage
	if err := c.Call(ctx, method, params, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *jsonClient) Notify(ctx context.Context, method string, args any) error {
	var discard json.RawMessage
	return c.Call(ctx, method, args, &discard)
}

func (*jsonClient) Close() error { return nil }

func listenJSON(addr string, _ *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json")

	mux := http.NewServeMux()
	mux.Handle(JSONPath, rpcServer)

	return &jsonServer{
		listener: listener,
		rpc:      rpcServer,
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// jsonServer implements Server with gorilla/rpc. Services are dispatched by
// reflection as "Name.Method".
type jsonServer struct {
	listener net.Listener
	rpc      *rpc.Server
	http     *http.Server
}

func (s *jsonServer) Register(name string, receiver any) error {
	return s.rpc.RegisterService(receiver, name)
}

// RegisterRaw is not supported; register a service receiver instead.
func (*jsonServer) RegisterRaw(method string, _ RawHandler) error {
	return fmt.Errorf("json RegisterRaw %s: %w", method, ErrUnsupported)
}

func (s *jsonServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			log.Printf("[RPC] json shutdown: %v", err)
		}
	})
	defer stop()

	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *jsonServer) Close() error {
	err := s.http.Close()
	_ = s.listener.Close()
	return err
}

func (s *jsonServer) Addr() string {
	return s.listener.Addr().String()
}
