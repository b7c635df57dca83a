// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/treerpc/bridge"
)

// Bridge method names on raw transports. Parameters travel as a JSON array
// of positional arguments; the reply is the JSON encoded result.
const (
	MethodVersion    = "version"
	MethodName       = "name"
	MethodInfo       = "info"
	MethodGetProps   = "get_props"
	MethodGetParam   = "get_param"
	MethodSetParam   = "set_param"
	MethodRemoteCall = "remote_call"
	MethodEmit       = "emit"

	// MethodNotify is the method of pushed notifications.
	MethodNotify = "notify"
)

// BridgeServiceName is the service name on reflection based transports.
const BridgeServiceName = "Bridge"

// RegisterBridge exposes iface on srv. Raw handlers are preferred; servers
// that only dispatch by reflection get a BridgeService instead. When srv can
// broadcast, iface's notifications are pushed to every client.
func RegisterBridge(srv Server, iface *bridge.Interface) error {
	err := registerBridgeRaw(srv, iface)
	if errors.Is(err, ErrUnsupported) {
		err = srv.Register(BridgeServiceName, NewBridgeService(iface))
	}
	if err != nil {
		return fmt.Errorf("register bridge: %w", err)
	}

	if b, ok := srv.(Broadcaster); ok {
		iface.SetNotifier(func(message any) {
			payload, err := json.Marshal(message)
			if err != nil {
				log.Printf("[RPC] encode notification: %v", err)
				return
			}
			if err := b.Broadcast(MethodNotify, payload); err != nil {
				log.Printf("[RPC] broadcast notification: %v", err)
			}
		})
	}
	return nil
}

func registerBridgeRaw(srv Server, iface *bridge.Interface) error {
	handlers := map[string]func(params []any) (any, error){
		MethodVersion: func([]any) (any, error) { return iface.Version(), nil },
		MethodName:    func([]any) (any, error) { return iface.Name(), nil },
		MethodInfo:    func([]any) (any, error) { return iface.Info(), nil },
		MethodGetProps: func([]any) (any, error) {
			return iface.GetProps()
		},
		MethodGetParam: func(params []any) (any, error) {
			path, err := pathParam(params, 1)
			if err != nil {
				return nil, err
			}
			return iface.GetParam(path)
		},
		MethodSetParam: func(params []any) (any, error) {
			path, err := pathParam(params, 2)
			if err != nil {
				return nil, err
			}
			return nil, iface.SetParam(path, params[1])
		},
		MethodRemoteCall: func(params []any) (any, error) {
			if len(params) < 1 {
				return nil, fmt.Errorf("%s: missing path", MethodRemoteCall)
			}
			path, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("%s: path must be a string, got %T", MethodRemoteCall, params[0])
			}
			return iface.RemoteCall(path, params[1:]...)
		},
		MethodEmit: func(params []any) (any, error) {
			msg, err := pathParam(params, 1)
			if err != nil {
				return nil, err
			}
			iface.Emit(msg)
			return nil, nil
		},
	}

	for method, fn := range handlers {
		if err := srv.RegisterRaw(method, rawBridgeHandler(method, fn)); err != nil {
			return err
		}
	}
	return nil
}

func rawBridgeHandler(method string, fn func([]any) (any, error)) RawHandler {
	return func(_ context.Context, payload []byte) ([]byte, error) {
		var params []any
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &params); err != nil {
				return nil, fmt.Errorf("%s: params must be a JSON array: %w", method, err)
			}
		}
		result, err := fn(params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}
}

// pathParam returns the leading string of exactly n positional params.
func pathParam(params []any, n int) (string, error) {
	if len(params) != n {
		return "", fmt.Errorf("expected %d params, got %d", n, len(params))
	}
	s, ok := params[0].(string)
	if !ok {
		return "", fmt.Errorf("first param must be a string, got %T", params[0])
	}
	return s, nil
}

// Arguments of BridgeService methods.
type (
	NoArgs   struct{}
	PathArgs struct {
		Path string `json:"path"`
	}
	SetArgs struct {
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	CallArgs struct {
		Path string `json:"path"`
		Args []any  `json:"args"`
	}
	EmitArgs struct {
		Message string `json:"message"`
	}
)

// BridgeService adapts a bridge.Interface to gorilla/rpc's reflected
// method shape.
type BridgeService struct {
	iface *bridge.Interface
}

func NewBridgeService(iface *bridge.Interface) *BridgeService {
	return &BridgeService{iface: iface}
}

func (s *BridgeService) Version(_ *http.Request, _ *NoArgs, reply *string) error {
	*reply = s.iface.Version()
	return nil
}

func (s *BridgeService) Name(_ *http.Request, _ *NoArgs, reply *string) error {
	*reply = s.iface.Name()
	return nil
}

func (s *BridgeService) Info(_ *http.Request, _ *NoArgs, reply *map[string]any) error {
	*reply = s.iface.Info()
	return nil
}

func (s *BridgeService) GetProps(_ *http.Request, _ *NoArgs, reply *map[string]any) error {
	props, err := s.iface.GetProps()
	if err != nil {
		return jsonError(err)
	}
	*reply = props
	return nil
}

func (s *BridgeService) GetParam(_ *http.Request, args *PathArgs, reply *any) error {
	v, err := s.iface.GetParam(args.Path)
	if err != nil {
		return jsonError(err)
	}
	*reply = v
	return nil
}

func (s *BridgeService) SetParam(_ *http.Request, args *SetArgs, _ *any) error {
	return jsonError(s.iface.SetParam(args.Path, args.Value))
}

func (s *BridgeService) RemoteCall(_ *http.Request, args *CallArgs, reply *any) error {
	v, err := s.iface.RemoteCall(args.Path, args.Args...)
	if err != nil {
		return jsonError(err)
	}
	*reply = v
	return nil
}

func (s *BridgeService) Emit(_ *http.Request, args *EmitArgs, _ *any) error {
	s.iface.Emit(args.Message)
	return nil
}

// jsonError maps bridge failures to JSON-RPC error codes.
func jsonError(err error) error {
	if err == nil {
		return nil
	}
	code := json2.E_SERVER
	switch {
	case errors.Is(err, bridge.ErrPathNotFound),
		errors.Is(err, bridge.ErrTypeMismatch),
		errors.Is(err, bridge.ErrInvalidIndex):
		code = json2.E_BAD_PARAMS
	}
	return &json2.Error{Code: code, Message: err.Error()}
}
