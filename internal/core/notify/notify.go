// Package notify carries user-facing notifications out of services that must not fail loudly.
// The HTTP layer attaches a Collector per request and renders what was collected.
package notify

import (
	"context"
	"sync"
)

// Level of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one message for the operator.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Collector accumulates notifications. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

// Add appends n.
func (c *Collector) Add(n Notification) {
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

// Items returns a copy of everything collected so far.
func (c *Collector) Items() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

type collectorKey struct{}

// WithCollector attaches c to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// CollectorFrom returns the collector in ctx or nil.
func CollectorFrom(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}

// ContextNotifier delivers into the request collector, if any.
type ContextNotifier struct{}

// Notify implements Notifier.
func (ContextNotifier) Notify(ctx context.Context, n Notification) {
	if c := CollectorFrom(ctx); c != nil {
		c.Add(n)
	}
}

// Error is shorthand for an error-level notification.
func Error(ctx context.Context, n Notifier, title, message string) {
	if n == nil {
		return
	}
	n.Notify(ctx, Notification{Level: LevelError, Title: title, Message: message})
}

// Warning is shorthand for a warning-level notification.
func Warning(ctx context.Context, n Notifier, title, message string) {
	if n == nil {
		return
	}
	n.Notify(ctx, Notification{Level: LevelWarning, Title: title, Message: message})
}
