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
	"errors"
	"sync"

	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/node"
	"github.com/nuts-foundation/ssb-cooler/ssb/log"
)

func newLocalBootstrapper() *localBootstrapper {
	return &localBootstrapper{
		startFunc: node.Start,
	}
}

// localBootstrapper starts a Scuttlebutt server in this process.
type localBootstrapper struct {
	mux       sync.Mutex
	node      *node.Node
	startFunc func(config node.Config) (*node.Node, error)
}

// Bootstrap starts the server. A server that is already running (in this process, or another process using the same
// address or storage directory) is not an error: it is logged and the caller continues connecting to it.
// Other failures are logged as errors, but not returned either: the caller keeps retrying regardless.
func (b *localBootstrapper) Bootstrap(config node.Config) {
	b.mux.Lock()
	defer b.mux.Unlock()

	logger := log.Diagnostic().WithField(core.LogFieldNodeAddress, config.Address())
	if b.node != nil && b.node.Running() {
		bootstrapAttempts.WithLabelValues(outcomeAlreadyRunning).Inc()
		logger.Info("Scuttlebutt server already running in this process")
		return
	}
	started, err := b.startFunc(config)
	switch {
	case err == nil:
		b.node = started
		bootstrapAttempts.WithLabelValues(outcomeSuccess).Inc()
	case errors.Is(err, node.ErrAlreadyRunning):
		bootstrapAttempts.WithLabelValues(outcomeAlreadyRunning).Inc()
		logger.WithError(err).Info("Scuttlebutt server appears to be running already, not starting another one")
	default:
		bootstrapAttempts.WithLabelValues(outcomeFailure).Inc()
		logger.WithError(err).Error("Unable to start Scuttlebutt server")
	}
}

// Peers returns the peers discovered by the started server.
func (b *localBootstrapper) Peers() []node.Peer {
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.node == nil {
		return nil
	}
	return b.node.Peers()
}

// ID returns the feed ID of the started server, or an empty string when none was started.
func (b *localBootstrapper) ID() string {
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.node == nil {
		return ""
	}
	return b.node.ID()
}

// Running returns whether a server was started and is still running.
func (b *localBootstrapper) Running() bool {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.node != nil && b.node.Running()
}

func (b *localBootstrapper) Shutdown() {
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.node != nil {
		b.node.Shutdown()
		b.node = nil
	}
}
