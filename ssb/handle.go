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
	"github.com/nuts-foundation/ssb-cooler/ssb/log"
	"github.com/nuts-foundation/ssb-cooler/tangle"
)

// handle combines a client with a tangle implementation, so all handles expose the same capabilities.
type handle struct {
	Client
	tangle Tangle
}

func (h *handle) Tangle() Tangle {
	return h.tangle
}

// newHandle wraps the client in a Handle. Servers that don't support tangles (e.g. Patchwork) get a tangle
// implementation that computes branches on the client side.
func newHandle(client *natsClient) Handle {
	if client.Manifest().Has(node.MethodTangleBranch) {
		return &handle{Client: client, tangle: remoteTangle{client: client}}
	}
	log.Logger().Debug("Scuttlebutt server doesn't support tangles, computing tangle branches locally")
	return &handle{Client: client, tangle: augmentedTangle{client: client}}
}

// augmentedTangle computes tangle branches from the messages linking to the root.
type augmentedTangle struct {
	client Client
}

func (a augmentedTangle) Branch(ctx context.Context, root string) ([]string, error) {
	messages, err := a.client.Links(ctx, root)
	if err != nil {
		return nil, err
	}
	return tangle.Branch(root, node.TangleEntries(root, messages)), nil
}
