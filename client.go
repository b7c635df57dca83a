// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"context"
	"errors"
)

// ErrUnsupported is returned for operations a transport cannot perform, such
// as raw handlers on the reflection based JSON-RPC server.
var ErrUnsupported = errors.New("operation not supported by transport")

// Client is the protocol-agnostic RPC client interface.
// All application code should use this interface.
type Client interface {
	// Call makes a synchronous RPC call
	Call(ctx context.Context, method string, args, reply any) error

	// CallRaw makes a call with raw bytes
	CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error)

	// Notify sends a one-way message (no response expected)
	Notify(ctx context.Context, method string, args any) error

	// Close closes the connection
	Close() error
}

// Server is the protocol-agnostic RPC server interface.
type Server interface {
	// Register registers a reflected service receiver
	Register(name string, receiver any) error

	// RegisterRaw registers a raw byte handler
	RegisterRaw(method string, handler RawHandler) error

	// Serve starts serving requests (blocks until context cancelled)
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// Broadcaster is implemented by servers that can push one-way messages to
// every connected client.
type Broadcaster interface {
	Broadcast(method string, payload []byte) error
}

// RawHandler handles raw byte RPC calls
type RawHandler func(ctx context.Context, payload []byte) ([]byte, error)

// NotifyHandler receives server-initiated messages on a client.
type NotifyHandler func(method string, payload []byte)

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec     Codec
	transport string // "zap", "grpc", "json"
	notify    NotifyHandler
	http      []Option
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithNotifyHandler installs the handler for pushed notifications. Only
// transports that keep a connection open deliver them.
func WithNotifyHandler(h NotifyHandler) DialOption {
	return func(o *dialOptions) { o.notify = h }
}

// WithHTTPOptions sets headers and query parameters for HTTP transports.
func WithHTTPOptions(opts ...Option) DialOption {
	return func(o *dialOptions) { o.http = append(o.http, opts...) }
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport string
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}
