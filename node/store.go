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
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/node/log"
	"go.etcd.io/bbolt"
)

const storeFileName = "log.db"

var (
	logBucket      = []byte("log")
	feedBucket     = []byte("feed")
	identityBucket = []byte("identity")
	identityKey    = []byte("ed25519")
)

// lockTimeout is how long opening the store waits for the file lock, which is held by another server using the same directory.
var lockTimeout = time.Second

var nowFunc = time.Now

// store is the append-only message log of the server's own feed, backed by BBolt.
type store struct {
	db       *bbolt.DB
	identity ed25519.PrivateKey
	id       string
}

func openStore(dir string) (*store, error) {
	db, err := bbolt.Open(filepath.Join(dir, storeFileName), 0600, &bbolt.Options{Timeout: lockTimeout})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: store is locked (dir=%s)", ErrAlreadyRunning, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open store: %w", err)
	}
	s := &store{db: db}
	if err = s.loadIdentity(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) loadIdentity() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{logBucket, feedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		bucket, err := tx.CreateBucketIfNotExists(identityBucket)
		if err != nil {
			return err
		}
		if seed := bucket.Get(identityKey); seed != nil {
			s.identity = ed25519.NewKeyFromSeed(seed)
		} else {
			_, s.identity, err = ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			if err = bucket.Put(identityKey, s.identity.Seed()); err != nil {
				return err
			}
			log.Logger().Info("Generated new Scuttlebutt identity")
		}
		s.id = "@" + base64.StdEncoding.EncodeToString(s.identity.Public().(ed25519.PublicKey)) + ".ed25519"
		return nil
	})
}

// ID returns the feed ID of the server.
func (s *store) ID() string {
	return s.id
}

// Append signs the given content and appends it to the feed.
func (s *store) Append(content json.RawMessage) (Message, error) {
	var typed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(content, &typed); err != nil || typed.Type == "" {
		return Message{}, fmt.Errorf("%w: content must be an object with a type", ErrInvalidContent)
	}
	var msg Message
	err := s.db.Update(func(tx *bbolt.Tx) error {
		feed := tx.Bucket(feedBucket)
		msg = Message{
			Author:    s.id,
			Sequence:  1,
			Timestamp: nowFunc().UnixMilli(),
			Content:   content,
		}
		if seq, key := feed.Cursor().Last(); seq != nil {
			msg.Sequence = binary.BigEndian.Uint64(seq) + 1
			msg.Previous = string(key)
		}
		if err := s.sign(&msg); err != nil {
			return err
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err = tx.Bucket(logBucket).Put([]byte(msg.Key), data); err != nil {
			return err
		}
		return feed.Put(sequenceKey(msg.Sequence), []byte(msg.Key))
	})
	if err != nil {
		return Message{}, fmt.Errorf("unable to append message: %w", err)
	}
	log.Logger().
		WithField(core.LogFieldMessageKey, msg.Key).
		Debug("Message appended to feed")
	return msg, nil
}

func (s *store) sign(msg *Message) error {
	unsigned, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	msg.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(s.identity, unsigned)) + ".sig.ed25519"
	signed, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	hash := sha256.Sum256(signed)
	msg.Key = "%" + base64.StdEncoding.EncodeToString(hash[:]) + ".sha256"
	return nil
}

// Get returns the message with the given key, or ErrNotFound.
func (s *store) Get(key string) (Message, error) {
	var msg Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(logBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &msg)
	})
	return msg, err
}

// Links returns the messages that reference the given root, in feed order.
func (s *store) Links(root string) ([]Message, error) {
	var result []Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		messages := tx.Bucket(logBucket)
		return tx.Bucket(feedBucket).ForEach(func(_, key []byte) error {
			var msg Message
			if err := json.Unmarshal(messages.Get(key), &msg); err != nil {
				return err
			}
			if content, err := msg.TangleContent(); err == nil && content.Root == root {
				result = append(result, msg)
			}
			return nil
		})
	})
	return result, err
}

func (s *store) Close() error {
	return s.db.Close()
}

func sequenceKey(seq uint64) []byte {
	result := make([]byte, 8)
	binary.BigEndian.PutUint64(result, seq)
	return result
}
