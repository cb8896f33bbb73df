// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

import "sort"

// Message is any typed value routed by the messaging system. SortKey
// orders dispatch among multiple handlers of the same message type
// addressed to the same target. BaseType names the message type this
// one derives from ("" if it has none); a handler registered for that
// base type still receives a send of the derived type, per the
// matches-or-is-a-base-of routing rule.
type Message interface {
	SortKey() int64
	BaseType() string
}

// Queue selects which drain a PostMessage falls into.
type Queue int

const (
	ThisFrame Queue = iota
	NextFrame
	AfterInitialized
)

// Handler is a registered callback for one message type on one
// target. Registration is declarative, keyed by message type name, so
// dispatch is a single map lookup per message rather than a type
// switch per handler.
type Handler func(target Handle, msg Message)

// Bus is the per-world message router: direct dispatch by registered
// handler tables, plus a time-ordered queue for delayed PostMessage
// sends.
type Bus struct {
	handlers map[string]map[Handle][]Handler // msgType -> target -> handlers.
	queue    []queued
	now      float64
	frame    uint64
	ready    bool // set once the world finishes initialization.
}

type queued struct {
	msgType     string
	target      Handle
	msg         Message
	dispatchAt  float64
	queue       Queue
	postedFrame uint64
}

// NewBus creates an empty message bus.
func NewBus() *Bus {
	return &Bus{handlers: map[string]map[Handle][]Handler{}}
}

// Register attaches handler to every message of type msgType sent to
// target.
func (b *Bus) Register(msgType string, target Handle, handler Handler) {
	byTarget, ok := b.handlers[msgType]
	if !ok {
		byTarget = map[Handle][]Handler{}
		b.handlers[msgType] = byTarget
	}
	byTarget[target] = append(byTarget[target], handler)
}

// Unregister removes every handler registered for target, eg on
// component Deinitialize.
func (b *Bus) Unregister(target Handle) {
	for _, byTarget := range b.handlers {
		delete(byTarget, target)
	}
}

// SendMessage invokes every registered handler on target whose
// declared message type matches msgType or is the base msg declares,
// immediately, most-derived type first and in registration order
// within a type. The walk is exactly one hop deep: BaseType is a fixed
// value on the concrete msg, so a grand-base in a 3+-level type chain
// is not reachable from here — a message type that wants its
// grand-base's handlers too must report that ancestor as its BaseType.
func (b *Bus) SendMessage(msgType string, target Handle, msg Message, isLive func(Handle) bool) {
	if isLive != nil && !isLive(target) {
		return
	}
	seen := map[string]bool{}
	for t := msgType; t != "" && !seen[t]; t = msg.BaseType() {
		seen[t] = true
		for _, h := range b.handlers[t][target] {
			h(target, msg)
		}
	}
}

// PostMessage queues msg for dispatch at dispatchTime = now + delay.
// Callers that need isolation from later mutation should pass a copy;
// the bus stores the value as given.
func (b *Bus) PostMessage(msgType string, target Handle, msg Message, delay float64, queue Queue) {
	b.queue = append(b.queue, queued{
		msgType:     msgType,
		target:      target,
		msg:         msg,
		dispatchAt:  b.now + delay,
		queue:       queue,
		postedFrame: b.frame,
	})
}

// SetInitialized marks the world as done initializing; AfterInitialized
// messages queued before this point become eligible on the next Drain.
func (b *Bus) SetInitialized() { b.ready = true }

// Drain dispatches every queued message whose dispatch time has
// arrived, in ascending (dispatchAt, SortKey) order, to the handlers
// registered via Register. NextFrame messages posted since the last
// Drain are held back one drain; AfterInitialized messages are held
// until SetInitialized has been called. Messages whose target no
// longer exists are silently dropped. dt advances the bus's simulation
// clock before draining.
func (b *Bus) Drain(dt float64, isLive func(Handle) bool) {
	b.now += dt
	b.frame++
	var remaining []queued
	var due []queued
	for _, q := range b.queue {
		switch {
		case q.dispatchAt > b.now,
			q.queue == NextFrame && q.postedFrame == b.frame-1,
			q.queue == AfterInitialized && !b.ready:
			remaining = append(remaining, q)
		default:
			due = append(due, q)
		}
	}
	b.queue = remaining
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].dispatchAt != due[j].dispatchAt {
			return due[i].dispatchAt < due[j].dispatchAt
		}
		return due[i].msg.SortKey() < due[j].msg.SortKey()
	})
	for _, q := range due {
		b.SendMessage(q.msgType, q.target, q.msg, isLive)
	}
}
