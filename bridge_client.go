// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// BridgeClient calls the bridge operations registered by RegisterBridge.
type BridgeClient struct {
	c         Client
	reflected bool
}

// NewBridgeClient wraps c. Clients of the json transport call the reflected
// BridgeService methods; all others call the raw handlers.
func NewBridgeClient(c Client) *BridgeClient {
	_, reflected := c.(*jsonClient)
	return &BridgeClient{c: c, reflected: reflected}
}

func (b *BridgeClient) call(ctx context.Context, raw string, reflected string, args any, positional []any, reply any) error {
	if b.reflected {
		if args == nil {
			args = NoArgs{}
		}
		return b.c.Call(ctx, BridgeServiceName+"."+reflected, args, reply)
	}

	if positional == nil {
		positional = []any{}
	}
	payload, err := json.Marshal(positional)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", raw, err)
	}
	resp, err := b.c.CallRaw(ctx, raw, payload)
	if err != nil {
		return err
	}
	if reply == nil || len(resp) == 0 {
		return nil
	}
	return json.Unmarshal(resp, reply)
}

func (b *BridgeClient) Version(ctx context.Context) (string, error) {
	var v string
	err := b.call(ctx, MethodVersion, "Version", nil, nil, &v)
	return v, err
}

func (b *BridgeClient) Name(ctx context.Context) (string, error) {
	var v string
	err := b.call(ctx, MethodName, "Name", nil, nil, &v)
	return v, err
}

func (b *BridgeClient) Info(ctx context.Context) (map[string]any, error) {
	var v map[string]any
	err := b.call(ctx, MethodInfo, "Info", nil, nil, &v)
	return v, err
}

func (b *BridgeClient) GetProps(ctx context.Context) (map[string]any, error) {
	var v map[string]any
	err := b.call(ctx, MethodGetProps, "GetProps", nil, nil, &v)
	return v, err
}

func (b *BridgeClient) GetParam(ctx context.Context, path string) (any, error) {
	var v any
	err := b.call(ctx, MethodGetParam, "GetParam", PathArgs{Path: path}, []any{path}, &v)
	return v, err
}

func (b *BridgeClient) SetParam(ctx context.Context, path string, value any) error {
	return b.call(ctx, MethodSetParam, "SetParam", SetArgs{Path: path, Value: value}, []any{path, value}, nil)
}

// RemoteCall invokes the method at path. A call runs at most once on the
// server; a connection lost mid-call is reported, not retried.
func (b *BridgeClient) RemoteCall(ctx context.Context, path string, args ...any) (any, error) {
	var v any
	err := b.call(ctx, MethodRemoteCall, "RemoteCall",
		CallArgs{Path: path, Args: args}, append([]any{path}, args...), &v)
	return v, err
}

func (b *BridgeClient) Emit(ctx context.Context, message string) error {
	return b.call(ctx, MethodEmit, "Emit", EmitArgs{Message: message}, []any{message}, nil)
}

func (b *BridgeClient) Close() error {
	return b.c.Close()
}
