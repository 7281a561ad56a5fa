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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nuts-foundation/ssb-cooler/node"
	"github.com/sirupsen/logrus"
	logTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

// stubHandle is a Handle of which only the connection state is used.
type stubHandle struct {
	Handle
	closed atomic.Bool
}

func (s *stubHandle) Closed() bool {
	return s.closed.Load()
}

func (s *stubHandle) Close() {
	s.closed.Store(true)
}

var errNoServer = errors.New("connection refused")

func testCoolerConfig() Config {
	config := DefaultConfig()
	config.Retry = RetryConfig{Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return config
}

// supervisionMessages returns the messages (info and up) logged by this module, in order.
func supervisionMessages(hook *logTest.Hook) []string {
	var result []string
	for _, entry := range hook.AllEntries() {
		if entry.Data["module"] == moduleName && entry.Level <= logrus.InfoLevel {
			result = append(result, entry.Message)
		}
	}
	return result
}

func countMessage(hook *logTest.Hook, message string) int {
	count := 0
	for _, curr := range supervisionMessages(hook) {
		if curr == message {
			count++
		}
	}
	return count
}

type coolerMocks struct {
	prober       *MockProber
	bootstrapper *MockBootstrapper
}

func newCoolerMocks(t *testing.T) coolerMocks {
	ctrl := gomock.NewController(t)
	return coolerMocks{
		prober:       NewMockProber(ctrl),
		bootstrapper: NewMockBootstrapper(ctrl),
	}
}

func TestCooler_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("pre-existing server", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		hook := logTest.NewGlobal()
		mocks := newCoolerMocks(t)
		h := &stubHandle{}
		mocks.prober.EXPECT().Probe(gomock.Any()).Return(h, nil)
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		defer cooler.Close()

		first, err := cooler.Acquire(ctx)
		require.NoError(t, err)
		second, err := cooler.Acquire(ctx)
		require.NoError(t, err)

		assert.Same(t, h, first)
		assert.Same(t, first, second)
		assert.Equal(t, []string{"Using pre-existing Scuttlebutt server instead of starting one"}, supervisionMessages(hook))
	})
	t.Run("starts server after failed attempts", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		hook := logTest.NewGlobal()
		mocks := newCoolerMocks(t)
		h := &stubHandle{}
		const failures = 3
		// the server is started exactly once, right after the first attempt failed
		gomock.InOrder(
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(nil, errNoServer),
			mocks.bootstrapper.EXPECT().Bootstrap(gomock.Any()).Do(func(config node.Config) {
				assert.True(t, config.AutostartLocalPeerDiscovery)
				assert.True(t, config.DisableLocalWebTransport)
			}),
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(nil, errNoServer).Times(failures-1),
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(h, nil),
		)
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		defer cooler.Close()

		actual, err := cooler.Acquire(ctx)

		require.NoError(t, err)
		assert.Same(t, h, actual)
		assert.Equal(t, []string{
			"Initial connection attempt failed",
			"Starting Scuttlebutt server",
			"Connection attempt failed, retrying",
			"Connection attempt failed, retrying",
			"Retrying connection to own server",
		}, supervisionMessages(hook))
	})
	t.Run("starts server after single failed attempt", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		hook := logTest.NewGlobal()
		mocks := newCoolerMocks(t)
		h := &stubHandle{}
		gomock.InOrder(
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(nil, errNoServer),
			mocks.bootstrapper.EXPECT().Bootstrap(gomock.Any()),
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(h, nil),
		)
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		defer cooler.Close()

		actual, err := cooler.Acquire(ctx)

		require.NoError(t, err)
		assert.False(t, actual.Closed())
		assert.Equal(t, []string{
			"Initial connection attempt failed",
			"Starting Scuttlebutt server",
			"Retrying connection to own server",
		}, supervisionMessages(hook))
	})
	t.Run("offline mode with pre-existing server", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		hook := logTest.NewGlobal()
		mocks := newCoolerMocks(t)
		h := &stubHandle{}
		mocks.prober.EXPECT().Probe(gomock.Any()).Return(h, nil)
		mocks.bootstrapper.EXPECT().Shutdown()
		config := testCoolerConfig()
		config.Offline = true
		cooler := newCooler(config, mocks.prober, mocks.bootstrapper)
		defer cooler.Close()

		actual, err := cooler.Acquire(ctx)

		require.NoError(t, err)
		assert.Same(t, h, actual)
		assert.Equal(t, []string{
			"Offline mode activated - not connecting to scuttlebutt peers or pubs",
			"WARNING: offline mode cannot control the behavior of pre-existing servers",
			"Using pre-existing Scuttlebutt server instead of starting one",
		}, supervisionMessages(hook))
	})
	t.Run("concurrent callers share a single attempt", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		mocks := newCoolerMocks(t)
		h := &stubHandle{}
		gate := make(chan struct{})
		gomock.InOrder(
			mocks.prober.EXPECT().Probe(gomock.Any()).DoAndReturn(func(_ context.Context) (Handle, error) {
				<-gate
				return nil, errNoServer
			}),
			mocks.bootstrapper.EXPECT().Bootstrap(gomock.Any()),
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(h, nil),
		)
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		defer cooler.Close()

		const callers = 10
		results := make([]Handle, callers)
		wg := sync.WaitGroup{}
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = cooler.Acquire(ctx)
			}(i)
		}
		close(gate)
		wg.Wait()

		for _, result := range results {
			assert.Same(t, h, result)
		}
		assert.Equal(t, 1, cooler.supervisor.status().Cycles)
	})
	t.Run("closed connection is replaced once", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		hook := logTest.NewGlobal()
		mocks := newCoolerMocks(t)
		first, second := &stubHandle{}, &stubHandle{}
		gate := make(chan struct{})
		gomock.InOrder(
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(first, nil),
			mocks.prober.EXPECT().Probe(gomock.Any()).DoAndReturn(func(_ context.Context) (Handle, error) {
				<-gate
				return second, nil
			}),
		)
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		defer cooler.Close()
		actual, err := cooler.Acquire(ctx)
		require.NoError(t, err)
		require.Same(t, first, actual)

		first.Close()
		const callers = 10
		results := make([]Handle, callers)
		wg := sync.WaitGroup{}
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = cooler.Acquire(ctx)
			}(i)
		}
		close(gate)
		wg.Wait()

		for _, result := range results {
			assert.Same(t, second, result)
		}
		assert.Equal(t, 2, cooler.supervisor.status().Cycles)
		assert.Equal(t, 1, countMessage(hook, "Connection to Scuttlebutt server was closed, reconnecting"))
	})
	t.Run("connection closed before it was handed out", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		mocks := newCoolerMocks(t)
		stale, live := &stubHandle{}, &stubHandle{}
		stale.Close()
		gomock.InOrder(
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(stale, nil),
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(live, nil),
		)
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		defer cooler.Close()

		actual, err := cooler.Acquire(ctx)

		require.NoError(t, err)
		assert.Same(t, live, actual)
	})
	t.Run("offline mode doesn't start a server", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		hook := logTest.NewGlobal()
		mocks := newCoolerMocks(t)
		h := &stubHandle{}
		gomock.InOrder(
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(nil, errNoServer).Times(2),
			mocks.prober.EXPECT().Probe(gomock.Any()).Return(h, nil),
		)
		mocks.bootstrapper.EXPECT().Shutdown()
		config := testCoolerConfig()
		config.Offline = true
		cooler := newCooler(config, mocks.prober, mocks.bootstrapper)
		defer cooler.Close()

		_, err := cooler.Acquire(ctx)
		require.NoError(t, err)
		actual, err := cooler.Acquire(ctx)
		require.NoError(t, err)

		assert.Same(t, h, actual)
		assert.Equal(t, 1, countMessage(hook, "Offline mode activated - not connecting to scuttlebutt peers or pubs"))
		assert.Equal(t, 1, countMessage(hook, "WARNING: offline mode cannot control the behavior of pre-existing servers"))
		assert.Equal(t, 1, countMessage(hook, "Offline mode: not starting Scuttlebutt server, waiting for one to become available"))
		assert.Zero(t, countMessage(hook, "Starting Scuttlebutt server"))
	})
	t.Run("context cancelled while connecting", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		mocks := newCoolerMocks(t)
		mocks.prober.EXPECT().Probe(gomock.Any()).DoAndReturn(func(ctx context.Context) (Handle, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		defer cooler.Close()
		timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		actual, err := cooler.Acquire(timeoutCtx)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, actual)
	})
}

func TestCooler_Close(t *testing.T) {
	ctx := context.Background()

	t.Run("closes connection and server", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		mocks := newCoolerMocks(t)
		h := &stubHandle{}
		mocks.prober.EXPECT().Probe(gomock.Any()).Return(h, nil)
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		_, err := cooler.Acquire(ctx)
		require.NoError(t, err)

		cooler.Close()
		actual, err := cooler.Acquire(ctx)

		assert.True(t, h.Closed())
		assert.ErrorIs(t, err, ErrClosed)
		assert.Nil(t, actual)
		assert.False(t, cooler.supervisor.status().Connected)
	})
	t.Run("unblocks waiting callers", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		mocks := newCoolerMocks(t)
		mocks.prober.EXPECT().Probe(gomock.Any()).DoAndReturn(func(ctx context.Context) (Handle, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		mocks.bootstrapper.EXPECT().Shutdown()
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)
		result := make(chan error, 1)
		go func() {
			_, err := cooler.Acquire(ctx)
			result <- err
		}()

		cooler.Close()

		select {
		case err := <-result:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(5 * time.Second):
			t.Fatal("Acquire did not return")
		}
	})
	t.Run("twice", func(t *testing.T) {
		mocks := newCoolerMocks(t)
		mocks.prober.EXPECT().Probe(gomock.Any()).Return(&stubHandle{}, nil)
		mocks.bootstrapper.EXPECT().Shutdown().Times(2)
		cooler := newCooler(testCoolerConfig(), mocks.prober, mocks.bootstrapper)

		cooler.Close()
		cooler.Close()
	})
}
