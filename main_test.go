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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/ssb"
	"github.com/nuts-foundation/ssb-cooler/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_ServerLifecycle tests the lifecycle of the server:
// - It starts the server
// - Waits for the /status endpoint to return HTTP 200, indicating it started properly
// - Sends SIGINT signal
// - Waits for the main function to return
func Test_ServerLifecycle(t *testing.T) {
	testDirectory := t.TempDir()

	runningCtx, serverStoppedCallback := context.WithCancel(context.Background())
	serverConfig, moduleConfig := getIntegrationTestConfig(testDirectory)
	startCtx := startServer(testDirectory, serverStoppedCallback, serverConfig, moduleConfig)

	// Wait for the server to start
	<-startCtx.Done()

	if errors.Is(startCtx.Err(), context.Canceled) {
		t.Log("Process successfully started, sending KILL signal")
		stopServer(t, runningCtx)
	} else {
		t.Fatalf("Process didn't start before the time-out expired: %v", startCtx.Err())
	}
}

// Test_RestartReusesIdentity tests that the local Scuttlebutt server releases its storage on shutdown:
// after restarting the server (without exiting the main process) it uses the same identity.
func Test_RestartReusesIdentity(t *testing.T) {
	testDirectory := t.TempDir()

	runningCtx, serverStoppedCallback := context.WithCancel(context.Background())
	serverConfig, moduleConfig := getIntegrationTestConfig(testDirectory)
	startCtx := startServer(testDirectory, serverStoppedCallback, serverConfig, moduleConfig)
	<-startCtx.Done()
	if !errors.Is(startCtx.Err(), context.Canceled) {
		t.Fatalf("Process didn't start before the time-out expired: %v", startCtx.Err())
	}
	identity := waitForIdentity(t, serverConfig.HTTP.Address)
	stopServer(t, runningCtx)

	// Make sure we get "fresh" ports since the OS might not immediately free closed sockets
	runningCtx, serverStoppedCallback = context.WithCancel(context.Background())
	serverConfig, moduleConfig = getIntegrationTestConfig(testDirectory)
	startCtx = startServer(testDirectory, serverStoppedCallback, serverConfig, moduleConfig)
	<-startCtx.Done()
	if !errors.Is(startCtx.Err(), context.Canceled) {
		t.Fatalf("Process didn't start before the time-out expired: %v", startCtx.Err())
	}
	defer stopServer(t, runningCtx)

	assert.Equal(t, identity, waitForIdentity(t, serverConfig.HTTP.Address))
}

// waitForIdentity waits until the server is connected and returns the ID of the local Scuttlebutt server.
func waitForIdentity(t *testing.T, address string) string {
	var identity string
	test.WaitFor(t, func() (bool, error) {
		diagnostics := httpGet(fmt.Sprintf("http://%s/status/diagnostics", address))
		for _, line := range strings.Split(diagnostics, "\n") {
			if id, ok := strings.CutPrefix(strings.TrimSpace(line), "local_server_id: "); ok && id != "" {
				identity = id
				return strings.Contains(diagnostics, "connected: true"), nil
			}
		}
		return false, nil
	}, 10*time.Second, "server didn't connect")
	require.NotEmpty(t, identity)
	return identity
}

func stopServer(t *testing.T, ctx context.Context) {
	_ = syscall.Kill(syscall.Getpid(), syscall.SIGINT)
	<-ctx.Done()
	t.Log("Server shut down successfully.")
}

func startServer(testDirectory string, exitCallback func(), serverConfig core.ServerConfig, moduleConfig ModuleConfig) context.Context {
	// Create YAML file of server config + additional configs. Write it to disk and pass it to the server.
	koanfInstance := koanf.New(".")
	yamlParser := yaml.Parser()

	err := koanfInstance.Load(structs.ProviderWithDelim(serverConfig, "koanf", "."), nil)
	if err != nil {
		panic(err)
	}
	err = koanfInstance.Load(structs.ProviderWithDelim(moduleConfig, "koanf", "."), nil)
	if err != nil {
		panic(err)
	}

	bytes, err := koanfInstance.Marshal(yamlParser)
	if err != nil {
		panic(err)
	}

	configFile := filepath.Join(testDirectory, "cooler.yaml")
	err = os.WriteFile(configFile, bytes, 0644)
	if err != nil {
		panic(err)
	}

	os.Args = []string{"cooler", "server", "--configfile", configFile}
	timeout := 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	go func() {
		// Wait for the server to start, until the given timeout. Check every 100ms
		interval := 100 * time.Millisecond
		attempts := int(timeout / interval)
		address := fmt.Sprintf("http://%s/status", serverConfig.HTTP.Address)
		for i := 0; i < attempts; i++ {
			if httpGet(address) == "OK" {
				cancel()
				break
			}
			time.Sleep(interval)
		}
	}()

	go func() {
		main()
		exitCallback()
	}()

	return ctx
}

// httpGet returns the response body, or an empty string when the request failed.
func httpGet(address string) string {
	response, err := http.Get(address)
	if err != nil {
		return ""
	}
	defer response.Body.Close()
	data, _ := io.ReadAll(response.Body)
	return string(data)
}

func getIntegrationTestConfig(testDirectory string) (core.ServerConfig, ModuleConfig) {
	config := core.ServerConfig{
		Verbosity:    "info",
		LoggerFormat: "text",
		Datadir:      testDirectory,
		HTTP: core.HTTPConfig{
			Address: fmt.Sprintf("localhost:%d", test.FreeTCPPort()),
		},
	}

	ssbConfig := ssb.DefaultConfig()
	ssbConfig.Node.Port = test.FreeTCPPort()
	ssbConfig.Node.Discovery = false
	ssbConfig.Retry.Delay = 10 * time.Millisecond
	ssbConfig.Retry.MaxDelay = 100 * time.Millisecond

	return config, ModuleConfig{
		SSB: ssbConfig,
	}
}

type ModuleConfig struct {
	SSB ssb.Config `koanf:"ssb"`
}
