// Package testutil provides recording fakes shared by service tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/angohost/portal/internal/app/realtime"
)

// Publisher records realtime events.
type Publisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

// Publish implements realtime.Publisher.
func (p *Publisher) Publish(_ context.Context, ev realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// Events returns a copy of the recorded events.
func (p *Publisher) Events() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Types returns the recorded event types in order.
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// Invocation is one recorded edge function call.
type Invocation struct {
	Name    string
	Payload interface{}
}

// Notifier records edge function invocations and returns Err.
type Notifier struct {
	mu    sync.Mutex
	calls []Invocation
	Err   error
}

// InvokeFunction implements the checkout notifier.
func (n *Notifier) InvokeFunction(_ context.Context, name string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Invocation{Name: name, Payload: payload})
	return n.Err
}

// Names returns the invoked function names in order.
func (n *Notifier) Names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.calls))
	for _, c := range n.calls {
		out = append(out, c.Name)
	}
	return out
}

// Clock is a settable time source for services exposing a now func.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
