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

package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/test"
	testIO "github.com/nuts-foundation/ssb-cooler/test/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdOut(t *testing.T) *bytes.Buffer {
	buf := new(bytes.Buffer)
	oldStdout := stdOutWriter
	stdOutWriter = buf
	t.Cleanup(func() {
		stdOutWriter = oldStdout
	})
	return buf
}

func integrationTestArgs(t *testing.T) ([]string, map[string]string) {
	config := test.GetIntegrationTestConfig(testIO.TestDirectory(t))
	var args []string
	for key, value := range config {
		args = append(args, "--"+key+"="+value)
	}
	return args, config
}

func executeCommand(t *testing.T, ctx context.Context, args ...string) (string, error) {
	buf := captureStdOut(t)
	command := CreateCommand(CreateSystem())
	command.SetArgs(args)
	err := command.ExecuteContext(ctx)
	return buf.String(), err
}

func Test_rootCommand(t *testing.T) {
	t.Run("no args prints help", func(t *testing.T) {
		output, err := executeCommand(t, context.Background())

		require.NoError(t, err)
		assert.Contains(t, output, "Available Commands")
		assert.Contains(t, output, "server")
		assert.Contains(t, output, "ssb")
	})
	t.Run("config", func(t *testing.T) {
		args, _ := integrationTestArgs(t)

		output, err := executeCommand(t, context.Background(), append([]string{"config"}, args...)...)

		require.NoError(t, err)
		assert.Contains(t, output, "Current system config")
		assert.Contains(t, output, "verbosity: info")
		assert.Contains(t, output, "ssb:")
		assert.Contains(t, output, "discovery: false")
	})
	t.Run("version", func(t *testing.T) {
		output, err := executeCommand(t, context.Background(), "version")

		require.NoError(t, err)
		assert.Contains(t, output, "Cooler version: ")
		assert.Contains(t, output, "OS/Arch: ")
	})
	t.Run("invalid config", func(t *testing.T) {
		_, err := executeCommand(t, context.Background(), "config", "--loggerformat", "xml")

		assert.EqualError(t, err, "invalid formatter: 'xml'")
	})
}

func Test_serverCommand(t *testing.T) {
	t.Run("serves status until cancelled", func(t *testing.T) {
		args, config := integrationTestArgs(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		result := make(chan error, 1)
		go func() {
			_, err := executeCommand(t, ctx, append([]string{"server"}, args...)...)
			result <- err
		}()
		baseURL := "http://" + config["http.address"]

		test.WaitFor(t, func() (bool, error) {
			return httpGet(baseURL+"/status") == "OK", nil
		}, 10*time.Second, "server didn't start")
		test.WaitFor(t, func() (bool, error) {
			diagnostics := httpGet(baseURL + "/status/diagnostics")
			return bytes.Contains([]byte(diagnostics), []byte("connected: true")), nil
		}, 10*time.Second, "server didn't connect to Scuttlebutt server")
		assert.Contains(t, httpGet(baseURL+"/metrics"), core.MetricsNamespace+"_ssb_connected 1")
		cancel()

		select {
		case err := <-result:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("server didn't shut down")
		}
	})
	t.Run("HTTP address in use", func(t *testing.T) {
		args, config := integrationTestArgs(t)
		blocker := &http.Server{Addr: config["http.address"]}
		go func() {
			_ = blocker.ListenAndServe()
		}()
		defer blocker.Close()
		test.WaitFor(t, func() (bool, error) {
			return httpGet("http://"+config["http.address"]) != "", nil
		}, 5*time.Second, "blocking server didn't start")

		_, err := executeCommand(t, context.Background(), append([]string{"server"}, args...)...)

		assert.ErrorContains(t, err, "unable to start HTTP server")
	})
}

// httpGet returns the response body, or an empty string when the request failed.
func httpGet(url string) string {
	response, err := http.Get(url)
	if err != nil {
		return ""
	}
	defer response.Body.Close()
	data, _ := io.ReadAll(response.Body)
	return string(data)
}
