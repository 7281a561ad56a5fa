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

// Package tangle computes the state of message tangles: threads of messages that all point to a common root message and
// to the messages they were written in reply to.
package tangle

import (
	"encoding/json"
	"sort"
)

// Refs holds message keys. In message content it may be encoded either as a single string or as a list of strings.
type Refs []string

// UnmarshalJSON accepts both a single key and a list of keys.
func (r *Refs) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*r = nil
		} else {
			*r = Refs{single}
		}
		return nil
	}
	var multiple []string
	if err := json.Unmarshal(data, &multiple); err != nil {
		return err
	}
	*r = multiple
	return nil
}

// Content contains the tangle related fields of message content.
type Content struct {
	Type   string `json:"type,omitempty"`
	Root   string `json:"root,omitempty"`
	Branch Refs   `json:"branch,omitempty"`
}

// Entry is a message that is part of a tangle.
type Entry struct {
	Key      string
	Previous Refs
}

// Branch returns the heads of the tangle with the given root: keys of entries that aren't referenced as previous by any
// other entry. New messages in the tangle should reference all of them. Entries that aren't part of the tangle, except
// for the root itself, must be filtered out by the caller. The result is sorted.
func Branch(root string, entries []Entry) []string {
	known := map[string]bool{root: true}
	for _, entry := range entries {
		known[entry.Key] = true
	}
	for _, entry := range entries {
		for _, prev := range entry.Previous {
			if prev == entry.Key {
				continue
			}
			delete(known, prev)
		}
	}
	if len(known) == 0 {
		// only possible for a corrupt tangle that references itself in a cycle
		return []string{root}
	}
	result := make([]string, 0, len(known))
	for key := range known {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}
