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
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nuts-foundation/ssb-cooler/test"
	"github.com/nuts-foundation/ssb-cooler/test/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	config := DefaultConfig()
	config.Port = test.FreeTCPPort()
	config.StorageDir = filepath.Join(io.TestDirectory(t), "ssb")
	return config
}

func startTestNode(t *testing.T, config Config) (*Node, *nats.Conn) {
	n, err := Start(config)
	require.NoError(t, err)
	t.Cleanup(n.Shutdown)
	conn, err := nats.Connect(config.ClientURL(), nats.NoReconnect())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return n, conn
}

func TestStart(t *testing.T) {
	lockTimeout = 100 * time.Millisecond
	t.Cleanup(func() {
		lockTimeout = time.Second
	})

	t.Run("ok", func(t *testing.T) {
		config := testConfig(t)

		n, err := Start(config)
		require.NoError(t, err)
		defer n.Shutdown()

		assert.True(t, n.Running())
		assert.True(t, strings.HasPrefix(n.ID(), "@"))
		assert.True(t, strings.HasSuffix(n.ID(), ".ed25519"))
		assert.Empty(t, n.Peers())
		conn, err := nats.Connect(config.ClientURL())
		require.NoError(t, err)
		conn.Close()
	})
	t.Run("address in use", func(t *testing.T) {
		config := testConfig(t)
		startTestNode(t, config)
		other := testConfig(t)
		other.Port = config.Port

		_, err := Start(other)

		assert.ErrorIs(t, err, ErrAlreadyRunning)
		assert.ErrorContains(t, err, "address in use")
	})
	t.Run("storage directory in use", func(t *testing.T) {
		config := testConfig(t)
		startTestNode(t, config)
		other := testConfig(t)
		other.StorageDir = config.StorageDir

		_, err := Start(other)

		assert.ErrorIs(t, err, ErrAlreadyRunning)
		assert.ErrorContains(t, err, "store is locked")
	})
	t.Run("identity survives restart", func(t *testing.T) {
		config := testConfig(t)
		n, err := Start(config)
		require.NoError(t, err)
		id := n.ID()
		n.Shutdown()

		n, err = Start(config)
		require.NoError(t, err)
		defer n.Shutdown()

		assert.Equal(t, id, n.ID())
	})
	t.Run("websocket transport", func(t *testing.T) {
		config := testConfig(t)
		config.DisableLocalWebTransport = false
		config.WebsocketPort = test.FreeTCPPort()
		startTestNode(t, config)

		conn, err := net.Dial("tcp", net.JoinHostPort(config.Hostname, strconv.Itoa(config.WebsocketPort)))

		require.NoError(t, err)
		_ = conn.Close()
	})
}

func TestNode_Shutdown(t *testing.T) {
	config := testConfig(t)
	n, conn := startTestNode(t, config)
	closed := make(chan struct{})
	conn.SetClosedHandler(func(_ *nats.Conn) {
		close(closed)
	})

	n.Shutdown()
	n.Shutdown()

	assert.False(t, n.Running())
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("client connection was not closed")
	}
	assert.True(t, conn.IsClosed())
}

func TestConfig_ClientURL(t *testing.T) {
	config := Config{Hostname: "localhost", Port: 8008}

	assert.Equal(t, "localhost:8008", config.Address())
	assert.Equal(t, "nats://localhost:8008", config.ClientURL())
}
