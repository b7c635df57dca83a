// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge exposes a tree service to remote control clients through a
// narrow, dynamically typed surface: read the whole tree, read or write one
// attribute by path, call a method by path, and receive notifications.
//
// Writes never evaluate the target attribute. The declared type comes from
// the cached snapshot, the value is coerced completely, and only then is it
// committed through the tree's own setter so observers still fire.
package bridge

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luxfi/treerpc/tree"
)

// Version of the bridge protocol implementation.
const Version = "0.4.0"

// State is the object tree and its cached serialization.
type State interface {
	Service() *tree.Object
	CacheValue() tree.Node
}

// NotifyFunc delivers a one-way message to remote clients. It is supplied
// by the hosting transport.
type NotifyFunc func(message any)

// Observer is told about every completed operation.
type Observer interface {
	ObserveCall(op string, elapsed time.Duration, err error)
}

// Option configures an Interface.
type Option func(*Interface)

// WithMethodParameters makes method descriptors carry a "parameters" map
// with the bare type name of every argument.
func WithMethodParameters(enabled bool) Option {
	return func(i *Interface) { i.enrich = enabled }
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Interface) { i.log = l }
}

func WithObserver(o Observer) Option {
	return func(i *Interface) { i.observer = o }
}

// WithInfo sets the static service description returned by Info.
func WithInfo(info map[string]any) Option {
	return func(i *Interface) { i.info = info }
}

// Interface implements the remote operations on top of a State.
type Interface struct {
	state    State
	enrich   bool
	info     map[string]any
	log      *slog.Logger
	observer Observer

	mu     sync.RWMutex
	notify NotifyFunc
}

// New returns an Interface operating on state.
func New(state State, opts ...Option) *Interface {
	i := &Interface{
		state: state,
		info:  map[string]any{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Version returns the implementation banner.
func (i *Interface) Version() string { return "treerpc v" + Version }

// Name returns the concrete service type name.
func (i *Interface) Name() string { return i.state.Service().TypeName() }

// Info returns the static service description.
func (i *Interface) Info() map[string]any { return i.info }

// GetProps serializes the whole service and returns its attribute map.
func (i *Interface) GetProps() (props map[string]any, err error) {
	defer i.observe("get_props", time.Now(), &err)

	root := tree.Dump(i.state.Service())
	if i.enrich {
		EnrichMethods(root)
	}
	props, ok := root.Value().(map[string]any)
	if !ok {
		return nil, opError("get_props", "", fmt.Errorf("%w: service serialized as %s", ErrTypeMismatch, root.Type()))
	}
	return props, nil
}

// GetParam returns the wire form of the value at path.
func (i *Interface) GetParam(path string) (value any, err error) {
	defer i.observe("get_param", time.Now(), &err)

	v, err := Resolve(i.state.Service(), path)
	if err != nil {
		return nil, opError("get_param", path, err)
	}
	return SimplifyForWire(path, v, i.enrich), nil
}

// SetParam coerces raw to the declared type of path and commits it.
func (i *Interface) SetParam(path string, raw any) (err error) {
	defer i.observe("set_param", time.Now(), &err)

	root := i.state.Service()
	parent, leaf, err := ResolveParent(root, path)
	if err != nil {
		return opError("set_param", path, err)
	}
	decl, err := LookupNode(i.state.CacheValue(), path)
	if err != nil {
		return opError("set_param", path, err)
	}
	a, err := CoerceForAssignment(decl, parent, leaf, path, raw)
	if err != nil {
		return opError("set_param", path, err)
	}

	if a.Path != path {
		parent, leaf, err = ResolveParent(root, a.Path)
		if err != nil {
			return opError("set_param", a.Path, err)
		}
	}
	i.log.Debug("set_param", "path", a.Path, "type", decl.Type(), "value", a.Value)
	return opError("set_param", a.Path, parent.SetChild(leaf, a.Value))
}

// RemoteCall invokes the method at path. The result is returned as the
// method produced it.
func (i *Interface) RemoteCall(path string, args ...any) (result any, err error) {
	defer i.observe("remote_call", time.Now(), &err)

	v, err := Resolve(i.state.Service(), path)
	if err != nil {
		return nil, opError("remote_call", path, err)
	}
	m, ok := v.(*tree.Method)
	if !ok {
		return nil, opError("remote_call", path, fmt.Errorf("%w: %T is not callable", ErrTypeMismatch, v))
	}
	result, err = m.Call(args...)
	if err != nil {
		return nil, opError("remote_call", path, fmt.Errorf("%w: %w", ErrCallFailure, err))
	}
	return result, nil
}

// Emit sends message to remote clients.
func (i *Interface) Emit(message string) {
	i.Notify(message)
}

// SetNotifier installs the transport's delivery function.
func (i *Interface) SetNotifier(fn NotifyFunc) {
	i.mu.Lock()
	i.notify = fn
	i.mu.Unlock()
}

// Notify hands message to the installed notifier. Without one it is dropped.
func (i *Interface) Notify(message any) {
	i.mu.RLock()
	fn := i.notify
	i.mu.RUnlock()
	if fn == nil {
		i.log.Debug("notification dropped, no notifier installed")
		return
	}
	fn(message)
}

func (i *Interface) observe(op string, start time.Time, err *error) {
	if *err != nil {
		i.log.Warn("bridge call failed", "op", op, "err", *err)
	}
	if i.observer != nil {
		i.observer.ObserveCall(op, time.Since(start), *err)
	}
}
