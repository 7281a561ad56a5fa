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

package node

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config describes how a local Scuttlebutt server is started.
type Config struct {
	// Hostname is the interface the server listens on for client connections.
	Hostname string
	// Port is the port the server listens on for client connections.
	Port int
	// StorageDir is the directory the message log and identity are stored in.
	StorageDir string
	// WebsocketPort is the port of the websocket transport, only used when DisableLocalWebTransport is false.
	WebsocketPort int
	// AutostartLocalPeerDiscovery enables announcing and discovering peers on the local network.
	AutostartLocalPeerDiscovery bool
	// DisableLocalWebTransport disables the websocket transport.
	DisableLocalWebTransport bool
	// StartTimeout is the maximum time to wait for the server to accept connections.
	StartTimeout time.Duration
}

// DefaultConfig returns an instance of Config with the default values.
func DefaultConfig() Config {
	return Config{
		Hostname:                 "localhost",
		Port:                     8008,
		WebsocketPort:            8989,
		DisableLocalWebTransport: true,
		StartTimeout:             5 * time.Second,
	}
}

// Address returns the host:port clients connect to.
func (c Config) Address() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// ClientURL returns the URL clients connect to.
func (c Config) ClientURL() string {
	return fmt.Sprintf("nats://%s", c.Address())
}
