// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package treerpc serves typed object trees to remote control clients.
//
// The tree package models a service as nested objects, properties, enums,
// physical quantities and methods. The bridge package turns that tree into a
// small dynamic surface (get_props, get_param, set_param, remote_call, emit).
// This package carries the bridge over a protocol-agnostic Client/Server pair.
//
// # Transport Selection
//
// ZAP is the default transport. JSON-RPC 2.0 over HTTP is always available;
// gRPC needs a build tag:
//
//	go build              # zap + json
//	go build -tags grpc   # adds grpc
//
// # Usage
//
// Server usage:
//
//	state := tree.NewStateManager(root)
//	iface := bridge.New(state)
//	iface.Watch(state)
//
//	server, err := treerpc.Listen(":9000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := treerpc.RegisterBridge(server, iface); err != nil {
//	    log.Fatal(err)
//	}
//	server.Serve(ctx)
//
// Client usage:
//
//	c, err := treerpc.Dial(ctx, "localhost:9000",
//	    treerpc.WithNotifyHandler(func(method string, payload []byte) { ... }))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := treerpc.NewBridgeClient(c)
//	defer client.Close()
//
//	err = client.SetParam(ctx, "mode", 1)        // enum by index
//	v, err := client.GetParam(ctx, "voltage")    // magnitude only
//	out, err := client.RemoteCall(ctx, "configure", 2, 0.5)
//
// # Wire format
//
// On raw transports (zap, grpc) every bridge operation is a method of the
// same name whose payload is a JSON array of positional parameters. On the
// json transport the operations are methods of the reflected "Bridge"
// service, for example "Bridge.GetParam" with params {"path": "voltage"}.
// Servers that implement Broadcaster push change notifications as "notify"
// frames carrying {"name": path, "value": value}.
//
// # Architecture
//
//   - client.go: Client, Server, Broadcaster and their options
//   - codec.go: Codec interface for message encoding
//   - transport.go: transport registry used by Dial and Listen
//   - dial.go: Dial and Listen factory functions, ZAP client/server adapters
//   - zap.go: ZAP framing and connection handling
//   - json.go, json_transport.go: JSON-RPC client and gorilla/rpc server
//   - dial_grpc.go: gRPC transport (requires -tags grpc)
//   - bridge_server.go, bridge_client.go: bridge registration and client
package treerpc
