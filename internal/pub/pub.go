// Package pub provides the interface for publishing home feed updates.
package pub

import (
	"context"

	"github.com/joseerobless/blockexplorer/pkg/view"
)

// Pub defines the interface for publishing feed updates to external systems.
type Pub interface {
	// Send publishes a feed window to the configured destination.
	Send(context.Context, view.Feed) error

	// Close closes the publisher and releases any resources.
	Close()
}

// noopPub drops every feed. It is used when no NATS endpoint is configured.
type noopPub struct{}

// NewNoopPub returns a Pub that publishes nothing.
func NewNoopPub() Pub {
	return noopPub{}
}

func (noopPub) Send(context.Context, view.Feed) error { return nil }

func (noopPub) Close() {}
