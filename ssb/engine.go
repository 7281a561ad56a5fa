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
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/nuts-foundation/ssb-cooler/core"
)

const moduleName = "SSB"
const configKey = "ssb"

// Engine makes the shared Scuttlebutt connection available to the rest of the application.
type Engine struct {
	config Config
	mux    sync.RWMutex
	cooler *Cooler
	// openFunc is used to create the Cooler on Start.
	openFunc func(config Config) *Cooler
}

// NewEngine returns a new Engine with default configuration.
func NewEngine() *Engine {
	return &Engine{
		config:   DefaultConfig(),
		openFunc: Open,
	}
}

func (e *Engine) Name() string {
	return moduleName
}

func (e *Engine) ConfigKey() string {
	return configKey
}

func (e *Engine) Config() interface{} {
	return &e.config
}

func (e *Engine) Configure(config core.ServerConfig) error {
	if e.config.Node.StorageDir == "" {
		e.config.Node.StorageDir = path.Join(config.Datadir, "ssb")
	}
	if err := e.config.validate(); err != nil {
		return fmt.Errorf("invalid ssb config: %w", err)
	}
	return registerMetrics()
}

func (e *Engine) Start() error {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.cooler = e.openFunc(e.config)
	return nil
}

func (e *Engine) Shutdown() error {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.cooler != nil {
		e.cooler.Close()
		e.cooler = nil
	}
	return nil
}

// Acquire returns the shared connection. See Cooler.Acquire.
func (e *Engine) Acquire(ctx context.Context) (Handle, error) {
	e.mux.RLock()
	cooler := e.cooler
	e.mux.RUnlock()
	if cooler == nil {
		return nil, ErrNotStarted
	}
	return cooler.Acquire(ctx)
}

func (e *Engine) Diagnostics() []core.DiagnosticResult {
	result := []core.DiagnosticResult{
		core.GenericDiagnosticResult{Title: "offline", Outcome: e.config.Offline},
		core.GenericDiagnosticResult{Title: "server_address", Outcome: e.config.nodeConfig().Address()},
	}
	e.mux.RLock()
	cooler := e.cooler
	e.mux.RUnlock()
	if cooler == nil {
		return result
	}
	status := cooler.supervisor.status()
	result = append(result,
		core.GenericDiagnosticResult{Title: "connected", Outcome: status.Connected},
		core.GenericDiagnosticResult{Title: "supervision_cycles", Outcome: status.Cycles},
	)
	if status.Connected {
		result = append(result, core.GenericDiagnosticResult{Title: "connected_since", Outcome: status.ConnectedSince})
	}
	if local, ok := cooler.bootstrapper.(*localBootstrapper); ok {
		var peers []string
		for _, peer := range local.Peers() {
			peers = append(peers, peer.ID)
		}
		result = append(result,
			core.GenericDiagnosticResult{Title: "local_server_running", Outcome: local.Running()},
			core.GenericDiagnosticResult{Title: "local_server_id", Outcome: local.ID()},
			core.GenericDiagnosticResult{Title: "local_peers", Outcome: strings.Join(peers, ",")},
		)
	}
	return result
}
