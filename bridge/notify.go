// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"strings"

	"github.com/luxfi/treerpc/tree"
)

// Notification tells remote clients that the value at Name changed.
type Notification struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Observable is a source of change events, usually a *tree.StateManager.
type Observable interface {
	OnChange(fn tree.ChangeFunc)
}

// ChangeNotification builds the notification for a change at path. Clients
// know sliders only as plain values, so a slider's inner "value" is reported
// under the slider's own path.
func (i *Interface) ChangeNotification(path string, value any) Notification {
	if parent, ok := strings.CutSuffix(path, ".value"); ok && parent != "" {
		if v, err := Resolve(i.state.Service(), parent); err == nil {
			if _, slider := v.(*tree.NumberSlider); slider {
				path = parent
			}
		}
	}
	return Notification{Name: path, Value: SimplifyForWire(path, value, false)}
}

// Watch forwards every change reported by src to the notifier.
func (i *Interface) Watch(src Observable) {
	i.Subscribe(src, func(n Notification) {
		i.log.Debug("change notification", "name", n.Name, "value", n.Value)
		i.Notify(n)
	})
}

// Subscribe calls fn with the notification for every change reported by src.
func (i *Interface) Subscribe(src Observable, fn func(Notification)) {
	src.OnChange(func(path string, value any) {
		fn(i.ChangeNotification(path, value))
	})
}
