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
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/node"
	"github.com/nuts-foundation/ssb-cooler/ssb/log"
	"github.com/sirupsen/logrus"
)

// pending is a connection attempt. Callers wait for done to be closed, after which handle is set and never changes.
type pending struct {
	done   chan struct{}
	handle Handle
}

func (p *pending) resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// supervisorStatus is a snapshot of the supervisor's state, used for diagnostics.
type supervisorStatus struct {
	Connected      bool
	Cycles         int
	ConnectedSince time.Time
}

// supervisor runs supervision cycles: it probes for a running server, starts a local one when none is reachable and
// then keeps probing until connected. At most one cycle runs at a time, its outcome is shared by all callers.
type supervisor struct {
	prober       Prober
	bootstrapper Bootstrapper
	nodeConfig   node.Config
	offline      bool
	retry        RetryConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mux            sync.Mutex
	current        *pending
	closed         bool
	cycles         int
	connectedSince time.Time
}

func newSupervisor(prober Prober, bootstrapper Bootstrapper, nodeConfig node.Config, offline bool, retry RetryConfig) *supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &supervisor{
		prober:       prober,
		bootstrapper: bootstrapper,
		nodeConfig:   nodeConfig,
		offline:      offline,
		retry:        retry,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// pending returns the current connection attempt. A new supervision cycle is started when there is none yet, or when
// the previous one resolved to a connection that has been closed since. It returns nil when the supervisor is closed.
func (s *supervisor) pending() *pending {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.closed {
		return nil
	}
	if s.current != nil {
		if !s.current.resolved() || !s.current.handle.Closed() {
			return s.current
		}
		connectedGauge.Set(0)
		s.connectedSince = time.Time{}
		log.Diagnostic().Info("Connection to Scuttlebutt server was closed, reconnecting")
	}
	p := &pending{done: make(chan struct{})}
	s.current = p
	s.cycles++
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(p)
	}()
	return p
}

func (s *supervisor) supervise(p *pending) {
	supervisionCycles.Inc()
	logger := log.Diagnostic().WithField(core.LogFieldCycle, uuid.NewString())

	h, err := s.probe()
	if err == nil {
		logger.Info("Using pre-existing Scuttlebutt server instead of starting one")
		s.resolve(p, h)
		return
	}
	logger.WithError(err).Info("Initial connection attempt failed")
	if s.ctx.Err() != nil {
		return
	}

	if s.offline {
		logger.Warn("Offline mode: not starting Scuttlebutt server, waiting for one to become available")
	} else {
		logger.Info("Starting Scuttlebutt server")
		s.bootstrapper.Bootstrap(s.nodeConfig)
	}

	// The local server may take an unknown amount of time to become ready, so there is no limit to the number of attempts.
	h, err = retry.DoWithData(s.probe, s.retryOptions(logger)...)
	if err != nil {
		// only happens when the supervisor is closed
		logger.WithError(err).Debug("Supervision cycle aborted")
		return
	}
	logger.Info("Retrying connection to own server")
	s.resolve(p, h)
}

func (s *supervisor) probe() (Handle, error) {
	h, err := s.prober.Probe(s.ctx)
	if err != nil {
		probeAttempts.WithLabelValues(outcomeFailure).Inc()
		return nil, err
	}
	probeAttempts.WithLabelValues(outcomeSuccess).Inc()
	return h, nil
}

func (s *supervisor) retryOptions(logger *logrus.Entry) []retry.Option {
	options := []retry.Option{
		retry.Context(s.ctx),
		retry.Attempts(0),
		retry.Delay(s.retry.Delay),
		retry.MaxDelay(s.retry.MaxDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.
				WithError(err).
				WithField(core.LogFieldAttempt, n+2). // the initial attempt isn't part of the retry loop
				Info("Connection attempt failed, retrying")
		}),
	}
	if s.retry.MaxJitter > 0 {
		options = append(options,
			retry.MaxJitter(s.retry.MaxJitter),
			retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		)
	} else {
		options = append(options, retry.DelayType(retry.BackOffDelay))
	}
	return options
}

func (s *supervisor) resolve(p *pending, h Handle) {
	s.mux.Lock()
	p.handle = h
	s.connectedSince = time.Now()
	s.mux.Unlock()
	connectedGauge.Set(1)
	close(p.done)
}

func (s *supervisor) status() supervisorStatus {
	s.mux.Lock()
	defer s.mux.Unlock()
	result := supervisorStatus{Cycles: s.cycles, ConnectedSince: s.connectedSince}
	if s.current != nil && s.current.resolved() {
		result.Connected = !s.current.handle.Closed()
	}
	return result
}

// close stops a running supervision cycle and closes the connection. It blocks until the cycle has stopped.
func (s *supervisor) close() {
	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		return
	}
	s.closed = true
	current := s.current
	s.mux.Unlock()

	s.cancel()
	s.wg.Wait()
	if current != nil && current.resolved() {
		current.handle.Close()
	}
	connectedGauge.Set(0)
}
