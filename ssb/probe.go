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
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nuts-foundation/ssb-cooler/node"
)

const clientName = "ssb-cooler"

type connectFunc func(url string, options ...nats.Option) (*nats.Conn, error)

func newNATSProber(url string, timeout time.Duration) *natsProber {
	return &natsProber{
		url:         url,
		timeout:     timeout,
		connectFunc: nats.Connect,
	}
}

// natsProber connects to the Scuttlebutt server over NATS.
type natsProber struct {
	url         string
	timeout     time.Duration
	connectFunc connectFunc
}

// Probe connects and retrieves the manifest of the server. The connection isn't reconnected when it breaks:
// it is closed instead, so holders of the Handle can observe it went stale.
func (p *natsProber) Probe(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := p.connectFunc(p.url, nats.Name(clientName), nats.Timeout(p.timeout), nats.NoReconnect())
	if err != nil {
		return nil, fmt.Errorf("unable to connect (url=%s): %w", p.url, err)
	}
	client := &natsClient{conn: conn, timeout: p.timeout}

	manifestCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	var manifest node.Manifest
	if err = client.call(manifestCtx, node.MethodManifest, nil, &manifest); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to retrieve manifest (url=%s): %w", p.url, err)
	}
	client.manifest = manifest
	return newHandle(client), nil
}
