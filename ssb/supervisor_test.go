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
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nuts-foundation/ssb-cooler/node"
	"github.com/nuts-foundation/ssb-cooler/ssb/log"
	logTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_retryOptions(t *testing.T) {
	retryConfig := RetryConfig{Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	t.Run("retries until success", func(t *testing.T) {
		hook := logTest.NewGlobal()
		s := newSupervisor(nil, nil, node.Config{}, false, retryConfig)
		calls := 0

		result, err := retry.DoWithData(func() (int, error) {
			calls++
			if calls < 4 {
				return 0, errNoServer
			}
			return calls, nil
		}, s.retryOptions(log.Logger())...)

		require.NoError(t, err)
		assert.Equal(t, 4, result)
		require.Len(t, hook.AllEntries(), 3)
		// the first attempt of a cycle is made before retrying starts
		assert.Equal(t, uint(2), hook.AllEntries()[0].Data["attempt"])
	})
	t.Run("with jitter", func(t *testing.T) {
		withJitter := retryConfig
		withJitter.MaxJitter = time.Millisecond
		s := newSupervisor(nil, nil, node.Config{}, false, withJitter)
		calls := 0

		_, err := retry.DoWithData(func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errNoServer
			}
			return calls, nil
		}, s.retryOptions(log.Logger())...)

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})
	t.Run("stops when closed", func(t *testing.T) {
		s := newSupervisor(nil, nil, node.Config{}, false, retryConfig)
		s.cancel()

		_, err := retry.DoWithData(func() (int, error) {
			return 0, errNoServer
		}, s.retryOptions(log.Logger())...)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSupervisor_status(t *testing.T) {
	s := newSupervisor(nil, nil, node.Config{}, false, RetryConfig{})

	t.Run("initial", func(t *testing.T) {
		status := s.status()

		assert.False(t, status.Connected)
		assert.Zero(t, status.Cycles)
		assert.True(t, status.ConnectedSince.IsZero())
	})
	t.Run("resolved", func(t *testing.T) {
		p := &pending{done: make(chan struct{})}
		s.current = p
		s.cycles = 1
		h := &stubHandle{}

		s.resolve(p, h)

		status := s.status()
		assert.True(t, status.Connected)
		assert.Equal(t, 1, status.Cycles)
		assert.False(t, status.ConnectedSince.IsZero())
		h.Close()
		assert.False(t, s.status().Connected)
	})
}
