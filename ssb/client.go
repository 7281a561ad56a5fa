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
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/nuts-foundation/ssb-cooler/node"
)

// natsClient invokes the methods of a Scuttlebutt server over a NATS connection.
type natsClient struct {
	conn     *nats.Conn
	manifest node.Manifest
	// timeout is applied to calls when the given context has no deadline.
	timeout time.Duration
}

func (c *natsClient) Closed() bool {
	return c.conn.IsClosed()
}

func (c *natsClient) Close() {
	c.conn.Close()
}

func (c *natsClient) Manifest() node.Manifest {
	return c.manifest
}

func (c *natsClient) Whoami(ctx context.Context) (string, error) {
	var response node.WhoamiResponse
	if err := c.call(ctx, node.MethodWhoami, nil, &response); err != nil {
		return "", err
	}
	return response.ID, nil
}

func (c *natsClient) Publish(ctx context.Context, content interface{}) (node.Message, error) {
	var msg node.Message
	err := c.call(ctx, node.MethodPublish, content, &msg)
	return msg, err
}

func (c *natsClient) Get(ctx context.Context, key string) (node.Message, error) {
	var msg node.Message
	err := c.call(ctx, node.MethodGet, node.KeyRequest{Key: key}, &msg)
	return msg, err
}

func (c *natsClient) Links(ctx context.Context, root string) ([]node.Message, error) {
	var messages []node.Message
	err := c.call(ctx, node.MethodLinks, node.RootRequest{Root: root}, &messages)
	return messages, err
}

func (c *natsClient) call(ctx context.Context, method string, args interface{}, result interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var data []byte
	if args != nil {
		var err error
		if data, err = json.Marshal(args); err != nil {
			return fmt.Errorf("unable to marshal %s request: %w", method, err)
		}
	}
	msg, err := c.conn.RequestWithContext(ctx, node.Subject(method), data)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	if description := msg.Header.Get(micro.ErrorHeader); description != "" {
		return RemoteError{Method: method, Code: msg.Header.Get(micro.ErrorCodeHeader), Description: description}
	}
	if err = json.Unmarshal(msg.Data, result); err != nil {
		return fmt.Errorf("invalid %s response: %w", method, err)
	}
	return nil
}

// remoteTangle uses the tangle methods of the server.
type remoteTangle struct {
	client *natsClient
}

func (r remoteTangle) Branch(ctx context.Context, root string) ([]string, error) {
	var branch []string
	err := r.client.call(ctx, node.MethodTangleBranch, node.RootRequest{Root: root}, &branch)
	return branch, err
}
