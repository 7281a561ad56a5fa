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
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/enbility/zeroconf/v3"
	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/node/log"
)

const discoveryServiceType = "_ssb._tcp"
const discoveryDomain = "local."
const feedIDTXTPrefix = "id="

// Peer is a Scuttlebutt server discovered on the local network.
type Peer struct {
	Instance  string
	ID        string
	Addresses []string
}

// discovery announces the local server on the local network using mDNS and keeps track of other servers announcing themselves.
type discovery struct {
	instance string
	server   *zeroconf.Server
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mux      sync.Mutex
	peers    map[string]Peer
}

func startDiscovery(id string, port int) (*discovery, error) {
	d := &discovery{
		instance: instanceName(id),
		peers:    map[string]Peer{},
	}
	server, err := zeroconf.Register(d.instance, discoveryServiceType, discoveryDomain, port, []string{feedIDTXTPrefix + id}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to announce server on local network: %w", err)
	}
	d.server = server

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	browsed := make(chan struct{})
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.collect(entries, removed, browsed)
	}()
	go func() {
		defer d.wg.Done()
		defer close(browsed)
		if err := zeroconf.Browse(ctx, discoveryServiceType, discoveryDomain, entries, removed); err != nil {
			log.Logger().WithError(err).Warn("Unable to browse local network for peers")
		}
	}()
	return d, nil
}

// collect receives entries until browsing has stopped. Browse sends without watching its context, so the channels
// must be drained until it returns, or it blocks forever. It doesn't close the channels when it fails to start.
func (d *discovery) collect(entries <-chan *zeroconf.ServiceEntry, removed <-chan *zeroconf.ServiceEntry, browsed <-chan struct{}) {
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			d.add(entry)
		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			d.remove(entry.Instance)
		case <-browsed:
			return
		}
	}
}

func (d *discovery) add(entry *zeroconf.ServiceEntry) {
	if entry == nil || entry.Instance == d.instance {
		return
	}
	peer := Peer{Instance: entry.Instance}
	for _, txt := range entry.Text {
		if strings.HasPrefix(txt, feedIDTXTPrefix) {
			peer.ID = strings.TrimPrefix(txt, feedIDTXTPrefix)
		}
	}
	for _, ip := range entry.AddrIPv4 {
		peer.Addresses = append(peer.Addresses, net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port)))
	}
	for _, ip := range entry.AddrIPv6 {
		peer.Addresses = append(peer.Addresses, net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port)))
	}
	d.mux.Lock()
	_, known := d.peers[peer.Instance]
	d.peers[peer.Instance] = peer
	d.mux.Unlock()
	if !known {
		log.Logger().
			WithField(core.LogFieldPeerInstance, peer.Instance).
			WithField(core.LogFieldFeedID, peer.ID).
			Info("Discovered Scuttlebutt peer on local network")
	}
}

func (d *discovery) remove(instance string) {
	d.mux.Lock()
	defer d.mux.Unlock()
	delete(d.peers, instance)
}

// Peers returns the currently known peers, sorted by instance name.
func (d *discovery) Peers() []Peer {
	d.mux.Lock()
	defer d.mux.Unlock()
	result := make([]Peer, 0, len(d.peers))
	for _, peer := range d.peers {
		result = append(result, peer)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Instance < result[j].Instance
	})
	return result
}

func (d *discovery) stop() {
	d.cancel()
	if d.server != nil {
		d.server.Shutdown()
	}
	d.wg.Wait()
}

// instanceName derives an mDNS instance name from the feed ID, which contains characters that aren't allowed in DNS labels.
func instanceName(id string) string {
	hash := sha256.Sum256([]byte(id))
	return fmt.Sprintf("ssb-%x", hash[:6])
}
