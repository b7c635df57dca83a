// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Dial connects to an RPC server using the default transport (ZAP).
// WithTransport selects another registered transport.
func Dial(ctx context.Context, addr string, opts ...DialOption) (Client, error) {
	o := &dialOptions{
		transport: DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}

	t, err := lookupTransport(o.transport)
	if err != nil {
		return nil, err
	}
	return t.dial(ctx, addr, o)
}

// Listen creates an RPC server listener using the default transport (ZAP).
func Listen(addr string, opts ...ServerOption) (Server, error) {
	o := &serverOptions{
		transport: DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}

	t, err := lookupTransport(o.transport)
	if err != nil {
		return nil, err
	}
	return t.listen(addr, o)
}

// dialZAP creates a ZAP client
func dialZAP(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	conn, err := ZAPDial(ctx, addr)
	if err != nil {
		return nil, err
	}
	if o.notify != nil {
		conn.SetNotifyHandler(o.notify)
	}
	return &zapClient{
		conn:  conn,
		codec: o.codec,
	}, nil
}

// listenZAP creates a ZAP server
func listenZAP(addr string, _ *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &zapServer{
		handlers: make(map[string]RawHandler),
	}
	s.server = NewZAPServer(listener, ZAPHandlerFunc(s.dispatch))
	return s, nil
}

// zapClient implements Client using ZAP transport
type zapClient struct {
	conn  *ZAPConn
	codec Codec
}

func (c *zapClient) Call(ctx context.Context, method string, args, reply any) error {
	return callWithCodec(c.codec, args, reply, func(payload []byte) ([]byte, error) {
		return c.conn.Call(ctx, method, payload)
	})
}

func (c *zapClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	return c.conn.Call(ctx, method, payload)
}

func (c *zapClient) Notify(ctx context.Context, method string, args any) error {
	var payload []byte
	if args != nil {
		var err error
		if payload, err = codecOrDefault(c.codec).Encode(args); err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
	}
	return c.conn.Notify(ctx, method, payload)
}

func (c *zapClient) Close() error {
	return c.conn.Close()
}

// zapServer implements Server using ZAP transport
type zapServer struct {
	mu       sync.RWMutex
	handlers map[string]RawHandler
	server   *ZAPServer
}

// Register is not supported; ZAP dispatches raw handlers only.
func (s *zapServer) Register(string, any) error {
	return fmt.Errorf("zap Register: %w, use RegisterRaw", ErrUnsupported)
}

func (s *zapServer) RegisterRaw(method string, handler RawHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	return nil
}

func (s *zapServer) dispatch(ctx context.Context, method string, payload []byte) ([]byte, error) {
	s.mu.RLock()
	handler, ok := s.handlers[method]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown method: %s", method)
	}
	return handler(ctx, payload)
}

func (s *zapServer) Serve(ctx context.Context) error {
	return s.server.Serve(ctx)
}

// Broadcast implements Broadcaster.
func (s *zapServer) Broadcast(method string, payload []byte) error {
	return s.server.Broadcast(method, payload)
}

func (s *zapServer) Close() error {
	return s.server.Close()
}

func (s *zapServer) Addr() string {
	return s.server.Addr().String()
}
