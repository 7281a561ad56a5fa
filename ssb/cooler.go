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

	"github.com/nuts-foundation/ssb-cooler/ssb/log"
)

// Cooler hands out a connection to a Scuttlebutt server that is shared by all callers, opening or reusing a server as needed.
type Cooler struct {
	supervisor   *supervisor
	bootstrapper Bootstrapper
}

// Open creates a Cooler and immediately starts connecting in the background, so connecting overlaps with the
// initialization of the rest of the application.
func Open(config Config) *Cooler {
	nodeConfig := config.nodeConfig()
	return newCooler(config, newNATSProber(nodeConfig.ClientURL(), config.Probe.Timeout), newLocalBootstrapper())
}

func newCooler(config Config, prober Prober, bootstrapper Bootstrapper) *Cooler {
	if config.Offline {
		log.Diagnostic().Warn("Offline mode activated - not connecting to scuttlebutt peers or pubs")
		log.Diagnostic().Warn("WARNING: offline mode cannot control the behavior of pre-existing servers")
	}
	result := &Cooler{
		supervisor:   newSupervisor(prober, bootstrapper, config.nodeConfig(), config.Offline, config.Retry),
		bootstrapper: bootstrapper,
	}
	result.supervisor.pending()
	return result
}

// Acquire returns the live connection, waiting for it to be established when needed.
// If the connection was closed (e.g. because the external server it was connected to has stopped),
// a new connection is established transparently: callers never need to reconnect themselves.
// Concurrent callers share both the connection and the attempt to establish it.
// It only returns an error when ctx is done or the Cooler is closed; failing connection attempts are retried indefinitely.
func (c *Cooler) Acquire(ctx context.Context) (Handle, error) {
	for {
		p := c.supervisor.pending()
		if p == nil {
			return nil, ErrClosed
		}
		select {
		case <-p.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.supervisor.ctx.Done():
			return nil, ErrClosed
		}
		if !p.handle.Closed() {
			return p.handle, nil
		}
		// closed while waiting, the next call to pending() starts a new cycle
	}
}

// Close stops connecting, closes the connection and stops the local server if one was started.
func (c *Cooler) Close() {
	c.supervisor.close()
	c.bootstrapper.Shutdown()
}
