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

package core

const (
	// LogFieldModule is the log field for the module name.
	LogFieldModule = "module"

	// LogFieldCycle is the log field key for the ID of a connection supervision cycle from the ssb module.
	LogFieldCycle = "cycle"
	// LogFieldAttempt is the log field key for the number of a connection attempt within a supervision cycle.
	LogFieldAttempt = "attempt"
	// LogFieldNodeAddress is the log field key for the client address of a Scuttlebutt server.
	LogFieldNodeAddress = "nodeAddr"
	// LogFieldFeedID is the log field key for the feed ID (public key) of a Scuttlebutt server.
	LogFieldFeedID = "feedID"
	// LogFieldMessageKey is the log field key for the key of a message stored in the local log.
	LogFieldMessageKey = "msgKey"
	// LogFieldMethod is the log field key for the name of an RPC method.
	LogFieldMethod = "method"
	// LogFieldPeerInstance is the log field key for the mDNS instance name of a discovered peer.
	LogFieldPeerInstance = "peerInstance"
)
