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
	"errors"
	"fmt"

	"github.com/nuts-foundation/ssb-cooler/node"
)

// ErrClosed is returned when a connection is acquired from a closed Cooler.
var ErrClosed = errors.New("connection supervisor closed")

// ErrNotStarted is returned when a connection is acquired from the engine before it was started.
var ErrNotStarted = errors.New("ssb engine not started")

// RemoteError is an error returned by the Scuttlebutt server.
type RemoteError struct {
	Method      string
	Code        string
	Description string
}

func (e RemoteError) Error() string {
	return fmt.Sprintf("%s failed (code=%s): %s", e.Method, e.Code, e.Description)
}

// Is maps error codes to the errors of the node package, so callers can use errors.Is(err, node.ErrNotFound).
func (e RemoteError) Is(target error) bool {
	switch target {
	case node.ErrNotFound:
		return e.Code == node.ErrorCodeNotFound
	case node.ErrInvalidContent:
		return e.Code == node.ErrorCodeBadRequest
	}
	return false
}
