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

package test

import (
	"fmt"
	"net"
)

// FreeTCPPort asks the kernel for a free open port that is ready to use.
func FreeTCPPort() int {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		panic(err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// GetIntegrationTestConfig returns the config values (as flag/env key-value pairs) for running the application in a test.
// Local network discovery is disabled, since multicast isn't available on most CI runners.
func GetIntegrationTestConfig(testDirectory string) map[string]string {
	return map[string]string{
		"datadir":            testDirectory,
		"http.address":       fmt.Sprintf("localhost:%d", FreeTCPPort()),
		"ssb.node.port":      fmt.Sprintf("%d", FreeTCPPort()),
		"ssb.node.discovery": "false",
		"ssb.retry.delay":    "10ms",
		"ssb.retry.maxdelay": "100ms",
	}
}
