// Package group implements the group manager (C7): lifecycle of
// membership in at-most-one secure group, coordinating subscribe/
// unsubscribe with the transport.
package group

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/gridswarm/pkg/channel"
	"github.com/chris-alexander-pop/gridswarm/pkg/dispatch"
	"github.com/chris-alexander-pop/gridswarm/pkg/envelope"
	"github.com/chris-alexander-pop/gridswarm/pkg/errors"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
)

// CodeNotInGroup is the error code for group_broadcast without an active
// group.
const CodeNotInGroup = "GROUP_NOT_IN_GROUP"

// ErrNotInGroup is returned by GroupBroadcast when no group is joined.
func ErrNotInGroup() *errors.AppError {
	return errors.New(CodeNotInGroup, "client is not a member of any group", nil)
}

// Manager owns the single group-membership slot: writes are serialized so
// join/leave are linearizable.
type Manager struct {
	self      string
	transport transport.Transport
	dispatch  *dispatch.Dispatcher

	mu     sync.Mutex
	active string
	handle transport.Handle
}

// New creates a Manager bound to self's identity.
func New(self string, t transport.Transport, d *dispatch.Dispatcher) *Manager {
	return &Manager{self: self, transport: t, dispatch: d}
}

// JoinGroup subscribes to the group's channel family, leaving any
// previously active group first. Idempotent if already in the same
// group.
func (m *Manager) JoinGroup(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == id {
		return nil
	}
	if m.active != "" {
		if err := m.leaveLocked(ctx); err != nil {
			return err
		}
	}

	h, err := m.transport.Subscribe(ctx, channel.GroupPattern(id), m.dispatch.OnTransportMessage)
	if err != nil {
		return err
	}
	m.active = id
	m.handle = h
	return nil
}

// LeaveGroup unsubscribes and clears state. Idempotent if not in a group.
func (m *Manager) LeaveGroup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(ctx)
}

func (m *Manager) leaveLocked(ctx context.Context) error {
	if m.active == "" {
		return nil
	}
	if m.handle != nil {
		if err := m.transport.Unsubscribe(ctx, m.handle); err != nil {
			return err
		}
	}
	m.active = ""
	m.handle = nil
	return nil
}

// GroupBroadcast publishes a group_msg on the current group's channel for
// topic. Fails with ErrNotInGroup if no group is active.
func (m *Manager) GroupBroadcast(ctx context.Context, topic string, payload any) error {
	m.mu.Lock()
	groupID := m.active
	m.mu.Unlock()

	if groupID == "" {
		return ErrNotInGroup()
	}

	encoded, err := envelope.Encode(payload)
	if err != nil {
		return err
	}
	env := &envelope.Envelope{
		Kind:    envelope.KindGroupMsg,
		Topic:   topic,
		From:    m.self,
		To:      groupID,
		Payload: encoded,
	}
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	if err := m.transport.Publish(ctx, channel.Group(groupID, topic), data); err != nil {
		return err
	}
	return nil
}

// CurrentGroup returns the active group ID and whether one is active.
func (m *Manager) CurrentGroup() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != ""
}

// InGroup reports whether the client currently belongs to a group.
func (m *Manager) InGroup() bool {
	_, ok := m.CurrentGroup()
	return ok
}

// Shutdown leaves any active group, per spec §4.7: "On client shutdown,
// leave any active group."
func (m *Manager) Shutdown(ctx context.Context) {
	_ = m.LeaveGroup(ctx)
}
