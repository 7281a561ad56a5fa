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
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	natsServer "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/node/log"
)

// ErrAlreadyRunning is returned when a Scuttlebutt server is already running on the configured address or storage directory.
var ErrAlreadyRunning = errors.New("scuttlebutt server already running")

// ErrNotReady is returned when the server didn't accept connections within the configured start timeout.
var ErrNotReady = errors.New("scuttlebutt server not ready for connections")

// Node is a Scuttlebutt server running in this process. Clients connect to it over NATS.
type Node struct {
	config    Config
	store     *store
	server    *natsServer.Server
	conn      *nats.Conn
	service   micro.Service
	discovery *discovery
	mux       sync.Mutex
	running   bool
}

// Start starts a server using the given configuration. It returns ErrAlreadyRunning (wrapped) when another server holds
// the configured address or storage directory.
func Start(config Config) (*Node, error) {
	if err := checkAddressAvailable(config.Address()); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.StorageDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("unable to create storage directory (dir=%s): %w", config.StorageDir, err)
	}
	n := &Node{config: config}
	var err error
	if n.store, err = openStore(config.StorageDir); err != nil {
		return nil, err
	}
	if err = n.start(); err != nil {
		n.shutdown()
		return nil, err
	}
	n.running = true
	log.Logger().
		WithField(core.LogFieldNodeAddress, config.Address()).
		WithField(core.LogFieldFeedID, n.store.ID()).
		Info("Scuttlebutt server started")
	return n, nil
}

func (n *Node) start() error {
	opts := &natsServer.Options{
		ServerName: "ssb-" + instanceName(n.store.ID()),
		Host:       n.config.Hostname,
		Port:       n.config.Port,
		NoSigs:     true, // Signals are handled by the application, the server is shut down with the Node.
		NoLog:      true,
	}
	if !n.config.DisableLocalWebTransport {
		opts.Websocket = natsServer.WebsocketOpts{
			Host:  n.config.Hostname,
			Port:  n.config.WebsocketPort,
			NoTLS: true,
		}
	}
	server, err := natsServer.NewServer(opts)
	if err != nil {
		return fmt.Errorf("unable to create server: %w", err)
	}
	n.server = server
	server.Start()
	if !server.ReadyForConnections(n.config.StartTimeout) {
		return ErrNotReady
	}

	n.conn, err = nats.Connect(server.ClientURL(), nats.InProcessServer(server), nats.Name("ssb-node"))
	if err != nil {
		return fmt.Errorf("unable to connect to own server: %w", err)
	}
	if n.service, err = startService(n.conn, newHandlers(n.store)); err != nil {
		return fmt.Errorf("unable to register service: %w", err)
	}

	if n.config.AutostartLocalPeerDiscovery {
		if n.discovery, err = startDiscovery(n.store.ID(), n.config.Port); err != nil {
			// the server is usable without discovery
			log.Logger().WithError(err).Warn("Local network peer discovery disabled")
		}
	}
	return nil
}

// ID returns the feed ID of the server.
func (n *Node) ID() string {
	return n.store.ID()
}

// Running returns whether the server is running.
func (n *Node) Running() bool {
	n.mux.Lock()
	defer n.mux.Unlock()
	return n.running
}

// Peers returns the peers discovered on the local network. It's empty when discovery is disabled.
func (n *Node) Peers() []Peer {
	n.mux.Lock()
	defer n.mux.Unlock()
	if n.discovery == nil {
		return nil
	}
	return n.discovery.Peers()
}

// Shutdown stops the server. Connected clients observe their connection being closed.
func (n *Node) Shutdown() {
	n.mux.Lock()
	defer n.mux.Unlock()
	if !n.running {
		return
	}
	n.running = false
	n.shutdown()
	log.Logger().Info("Scuttlebutt server stopped")
}

func (n *Node) shutdown() {
	if n.discovery != nil {
		n.discovery.stop()
		n.discovery = nil
	}
	if n.service != nil {
		_ = n.service.Stop()
	}
	if n.conn != nil {
		n.conn.Close()
	}
	if n.server != nil {
		n.server.Shutdown()
		n.server.WaitForShutdown()
	}
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			log.Logger().WithError(err).Warn("Unable to close store")
		}
	}
}

func checkAddressAvailable(address string) error {
	listener, err := net.Listen("tcp", address)
	if errors.Is(err, syscall.EADDRINUSE) {
		return fmt.Errorf("%w: address in use (addr=%s)", ErrAlreadyRunning, address)
	}
	if err != nil {
		return fmt.Errorf("unable to listen (addr=%s): %w", address, err)
	}
	return listener.Close()
}
