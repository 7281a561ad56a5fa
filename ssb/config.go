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
	"fmt"
	"time"

	"github.com/nuts-foundation/ssb-cooler/node"
)

// Config holds all the configuration params
type Config struct {
	// Offline disables connecting to peers and pubs, and starting a local server.
	Offline bool        `koanf:"offline"`
	Node    NodeConfig  `koanf:"node"`
	Probe   ProbeConfig `koanf:"probe"`
	Retry   RetryConfig `koanf:"retry"`
}

// NodeConfig specifies the address of the Scuttlebutt server and how a local one is started when none is running.
type NodeConfig struct {
	Hostname      string        `koanf:"hostname"`
	Port          int           `koanf:"port"`
	StorageDir    string        `koanf:"storagedir"`
	Websocket     bool          `koanf:"websocket"`
	WebsocketPort int           `koanf:"websocketport"`
	Discovery     bool          `koanf:"discovery"`
	StartTimeout  time.Duration `koanf:"starttimeout"`
}

// ProbeConfig specifies how a single connection attempt is made.
type ProbeConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// RetryConfig specifies the delay between connection attempts while waiting for a Scuttlebutt server.
type RetryConfig struct {
	Delay     time.Duration `koanf:"delay"`
	MaxDelay  time.Duration `koanf:"maxdelay"`
	MaxJitter time.Duration `koanf:"maxjitter"`
}

// DefaultConfig returns an instance of Config with the default values.
func DefaultConfig() Config {
	defs := node.DefaultConfig()
	return Config{
		Node: NodeConfig{
			Hostname:      defs.Hostname,
			Port:          defs.Port,
			WebsocketPort: defs.WebsocketPort,
			Discovery:     true,
			StartTimeout:  defs.StartTimeout,
		},
		Probe: ProbeConfig{
			Timeout: 2 * time.Second,
		},
		Retry: RetryConfig{
			Delay:     50 * time.Millisecond,
			MaxDelay:  2 * time.Second,
			MaxJitter: 100 * time.Millisecond,
		},
	}
}

func (c Config) validate() error {
	if c.Node.Port <= 0 {
		return fmt.Errorf("invalid ssb.node.port: %d", c.Node.Port)
	}
	if c.Probe.Timeout <= 0 {
		return errors.New("ssb.probe.timeout must be positive")
	}
	if c.Retry.Delay <= 0 {
		return errors.New("ssb.retry.delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.Delay {
		return errors.New("ssb.retry.maxdelay must not be smaller than ssb.retry.delay")
	}
	if c.Retry.MaxJitter < 0 {
		return errors.New("ssb.retry.maxjitter must not be negative")
	}
	return nil
}

// nodeConfig translates the configuration into the configuration of a local server. Peer discovery is only started
// when not in offline mode. The websocket transport is disabled unless explicitly enabled.
func (c Config) nodeConfig() node.Config {
	return node.Config{
		Hostname:                    c.Node.Hostname,
		Port:                        c.Node.Port,
		StorageDir:                  c.Node.StorageDir,
		WebsocketPort:               c.Node.WebsocketPort,
		AutostartLocalPeerDiscovery: !c.Offline && c.Node.Discovery,
		DisableLocalWebTransport:    !c.Node.Websocket,
		StartTimeout:                c.Node.StartTimeout,
	}
}
