// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"sync"

	"snapbuild/internal/permissions"
)

// unstableBroadcastChannel is the feature name checked when unstable APIs are off.
const unstableBroadcastChannel = "BroadcastChannel"

// BroadcastHub is an in-memory cross-context message bus keyed by channel name.
type BroadcastHub struct {
	mu     sync.Mutex
	queues map[string][]string
}

// NewBroadcastHub creates an empty hub.
func NewBroadcastHub() *BroadcastHub {
	return &BroadcastHub{queues: make(map[string][]string)}
}

// Post appends msg to channel.
func (h *BroadcastHub) Post(channel, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queues[channel] = append(h.queues[channel], msg)
}

// Receive pops the oldest message of channel.
func (h *BroadcastHub) Receive(channel string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	q := h.queues[channel]
	if len(q) == 0 {
		return "", false
	}
	h.queues[channel] = q[1:]
	return q[0], true
}

// BroadcastChannel provides cross-context messaging. It is an unstable API.
type BroadcastChannel struct {
	base
	hub      *BroadcastHub
	unstable bool
}

// NewBroadcastChannel creates the broadcast_channel module.
func NewBroadcastChannel(hub *BroadcastHub, unstable bool) *BroadcastChannel {
	return &BroadcastChannel{
		base:     base{name: ModuleBroadcastChannel, requires: []string{ModuleWebIDL, ModuleWeb}},
		hub:      hub,
		unstable: unstable,
	}
}

// Commands returns broadcast.post and broadcast.receive.
func (m *BroadcastChannel) Commands(perms permissions.Checker) []Command {
	return []Command{
		newCommand("broadcast.post", func(_ context.Context, args []string) error {
			if err := m.gate(perms); err != nil {
				return err
			}
			if err := requireArgs(args, 2, "CHANNEL MESSAGE"); err != nil {
				return err
			}
			m.hub.Post(args[1], args[2])
			return nil
		}),
		newCommand("broadcast.receive", func(ctx context.Context, args []string) error {
			if err := m.gate(perms); err != nil {
				return err
			}
			if err := requireArgs(args, 1, "CHANNEL"); err != nil {
				return err
			}
			msg, ok := m.hub.Receive(args[1])
			if !ok {
				return nil
			}
			return printLine(ctx, msg)
		}),
	}
}

func (m *BroadcastChannel) gate(perms permissions.Checker) error {
	if m.unstable {
		return nil
	}
	return perms.CheckUnstable(unstableBroadcastChannel)
}
