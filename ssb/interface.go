/*
 * Copyright (C) 2026 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package ssb

import (
	"context"

	"github.com/nuts-foundation/ssb-cooler/node"
)

// Client is a connection to a Scuttlebutt server, through which its capabilities are invoked.
// A Client is shared by all callers that acquired it: callers must not close it.
type Client interface {
	// Closed returns whether the underlying connection has been closed.
	Closed() bool
	// Close closes the underlying connection.
	Close()
	// Manifest returns the methods supported by the server.
	Manifest() node.Manifest
	// Whoami returns the feed ID of the server.
	Whoami(ctx context.Context) (string, error)
	// Publish appends a message with the given content to the server's feed.
	Publish(ctx context.Context, content interface{}) (node.Message, error)
	// Get returns the message with the given key.
	Get(ctx context.Context, key string) (node.Message, error)
	// Links returns the messages that reference the given root message.
	Links(ctx context.Context, root string) ([]node.Message, error)
}

// Tangle provides access to message tangles (threads).
type Tangle interface {
	// Branch returns the keys of the latest messages in the tangle with the given root,
	// which a new message in the tangle should reference.
	Branch(ctx context.Context, root string) ([]string, error)
}

// Handle is a live connection to a Scuttlebutt server. Regardless of which server implementation answered,
// every Handle provides the full capability set.
type Handle interface {
	Client
	// Tangle returns the tangle capability.
	Tangle() Tangle
}

// Prober makes a single attempt to connect to a running Scuttlebutt server.
type Prober interface {
	// Probe connects to a running server, or returns an error when none is reachable. It does not retry.
	Probe(ctx context.Context) (Handle, error)
}

// Bootstrapper starts a Scuttlebutt server in this process.
type Bootstrapper interface {
	// Bootstrap starts a server using the given configuration. Starting is best-effort: failures are logged, not returned.
	Bootstrap(config node.Config)
	// Shutdown stops the server started by Bootstrap, if any.
	Shutdown()
}
