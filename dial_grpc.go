//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"context"
	"fmt"
	"net"
	"path"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// grpcService prefixes every method name on the wire.
const grpcService = "/treerpc.Raw/"

func init() {
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// rawCodec carries payloads as opaque bytes so any method can be served
// without generated stubs.
type rawCodec struct{}

func (rawCodec) Name() string { return "treerpc-raw" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	}
	return nil, fmt.Errorf("grpc raw codec: cannot marshal %T", v)
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("grpc raw codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func dialGRPC(_ context.Context, addr string, o *dialOptions) (Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &grpcClient{conn: conn, codec: o.codec}, nil
}

type grpcClient struct {
	conn  *grpc.ClientConn
	codec Codec
}

func (c *grpcClient) Call(ctx context.Context, method string, args, reply any) error {
	return callWithCodec(c.codec, args, reply, func(payload []byte) ([]byte, error) {
		return c.CallRaw(ctx, method, payload)
	})
}

func (c *grpcClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var resp []byte
	if payload == nil {
		payload = []byte{}
	}
	if err := c.conn.Invoke(ctx, grpcService+method, &payload, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *grpcClient) Notify(ctx context.Context, method string, args any) error {
	return c.Call(ctx, method, args, nil)
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}

func listenGRPC(addr string, _ *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &grpcServer{
		listener: listener,
		handlers: make(map[string]RawHandler),
	}
	s.server = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(s.handleStream),
	)
	return s, nil
}

// grpcServer serves raw handlers for any method under grpcService.
type grpcServer struct {
	listener net.Listener
	server   *grpc.Server

	mu       sync.RWMutex
	handlers map[string]RawHandler
}

func (*grpcServer) Register(string, any) error {
	return fmt.Errorf("grpc Register: %w, use RegisterRaw", ErrUnsupported)
}

func (s *grpcServer) RegisterRaw(method string, handler RawHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	return nil
}

func (s *grpcServer) handleStream(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method in stream")
	}
	method := path.Base(full)

	s.mu.RLock()
	handler, ok := s.handlers[method]
	s.mu.RUnlock()
	if !ok {
		return status.Errorf(codes.Unimplemented, "unknown method: %s", method)
	}

	var in []byte
	if err := stream.RecvMsg(&in); err != nil {
		return err
	}
	out, err := handler(stream.Context(), in)
	if err != nil {
		return status.Error(codes.Unknown, err.Error())
	}
	if out == nil {
		out = []byte{}
	}
	return stream.SendMsg(&out)
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.server.GracefulStop)
	defer stop()
	return s.server.Serve(s.listener)
}

func (s *grpcServer) Close() error {
	s.server.Stop()
	return nil
}

func (s *grpcServer) Addr() string {
	return s.listener.Addr().String()
}
