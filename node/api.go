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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nuts-foundation/ssb-cooler/tangle"
)

// SubjectPrefix is the prefix of all NATS subjects the server answers requests on.
const SubjectPrefix = "ssb.rpc."

const (
	// MethodManifest lists the methods supported by the server.
	MethodManifest = "manifest"
	// MethodWhoami returns the feed ID of the server.
	MethodWhoami = "whoami"
	// MethodPublish appends a message to the server's own feed.
	MethodPublish = "publish"
	// MethodGet returns a single message by key.
	MethodGet = "get"
	// MethodLinks returns all messages that reference the given root message.
	MethodLinks = "links"
	// MethodTangleBranch returns the current heads of the tangle with the given root.
	MethodTangleBranch = "tangle.branch"
)

// Error codes returned in the service error header of a reply.
const (
	ErrorCodeBadRequest = "400"
	ErrorCodeNotFound   = "404"
	ErrorCodeInternal   = "500"
)

// ErrNotFound is returned when a requested message doesn't exist.
var ErrNotFound = errors.New("message not found")

// ErrInvalidContent is returned when message content can't be published.
var ErrInvalidContent = errors.New("invalid message content")

// Subject returns the NATS subject for the given method.
func Subject(method string) string {
	return SubjectPrefix + method
}

// Manifest lists the methods a server supports.
type Manifest []string

// Has returns whether the given method is supported.
func (m Manifest) Has(method string) bool {
	for _, curr := range m {
		if curr == method {
			return true
		}
	}
	return false
}

// WhoamiResponse is the reply to a whoami request.
type WhoamiResponse struct {
	ID string `json:"id"`
}

// KeyRequest is the request for methods that take a single message key.
type KeyRequest struct {
	Key string `json:"key"`
}

// RootRequest is the request for methods that operate on a tangle root.
type RootRequest struct {
	Root string `json:"root"`
}

// Message is a signed entry in a feed.
type Message struct {
	Key       string          `json:"key"`
	Previous  string          `json:"previous,omitempty"`
	Author    string          `json:"author"`
	Sequence  uint64          `json:"sequence"`
	Timestamp int64           `json:"timestamp"`
	Content   json.RawMessage `json:"content"`
	Signature string          `json:"signature"`
}

// TangleContent parses the tangle fields of the message content.
func (m Message) TangleContent() (tangle.Content, error) {
	var content tangle.Content
	if err := json.Unmarshal(m.Content, &content); err != nil {
		return content, fmt.Errorf("unable to parse content of %s: %w", m.Key, err)
	}
	return content, nil
}

// TangleEntries converts messages to tangle entries. Messages that are not part of the tangle with the given root are skipped.
func TangleEntries(root string, messages []Message) []tangle.Entry {
	var result []tangle.Entry
	for _, msg := range messages {
		content, err := msg.TangleContent()
		if err != nil || content.Root != root {
			continue
		}
		previous := content.Branch
		if len(previous) == 0 {
			// replies without branch follow up on the root directly
			previous = tangle.Refs{root}
		}
		result = append(result, tangle.Entry{Key: msg.Key, Previous: previous})
	}
	return result
}
