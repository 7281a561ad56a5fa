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

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/node/log"
	"github.com/nuts-foundation/ssb-cooler/tangle"
)

const serviceName = "ssb"
const serviceVersion = "1.0.0"

// handlers maps the methods the server supports to their implementation.
type handlers map[string]func(req micro.Request)

func newHandlers(s *store) handlers {
	return handlers{
		MethodManifest: nil, // set in startService, since it lists all methods
		MethodWhoami: func(req micro.Request) {
			respond(req, WhoamiResponse{ID: s.ID()})
		},
		MethodPublish: func(req micro.Request) {
			msg, err := s.Append(req.Data())
			if err != nil {
				respondError(req, err)
				return
			}
			respond(req, msg)
		},
		MethodGet: func(req micro.Request) {
			var args KeyRequest
			if !decode(req, &args) {
				return
			}
			msg, err := s.Get(args.Key)
			if err != nil {
				respondError(req, err)
				return
			}
			respond(req, msg)
		},
		MethodLinks: func(req micro.Request) {
			var args RootRequest
			if !decode(req, &args) {
				return
			}
			messages, err := s.Links(args.Root)
			if err != nil {
				respondError(req, err)
				return
			}
			if messages == nil {
				messages = []Message{}
			}
			respond(req, messages)
		},
		MethodTangleBranch: func(req micro.Request) {
			var args RootRequest
			if !decode(req, &args) {
				return
			}
			messages, err := s.Links(args.Root)
			if err != nil {
				respondError(req, err)
				return
			}
			respond(req, tangle.Branch(args.Root, TangleEntries(args.Root, messages)))
		},
	}
}

func (h handlers) manifest() Manifest {
	result := make(Manifest, 0, len(h))
	for method := range h {
		result = append(result, method)
	}
	return result
}

// startService registers the handlers as endpoints of a NATS micro service on the given connection.
func startService(conn *nats.Conn, h handlers) (micro.Service, error) {
	manifest := h.manifest()
	h[MethodManifest] = func(req micro.Request) {
		respond(req, manifest)
	}
	service, err := micro.AddService(conn, micro.Config{
		Name:    serviceName,
		Version: serviceVersion,
	})
	if err != nil {
		return nil, err
	}
	for method, handler := range h {
		if err = service.AddEndpoint(endpointName(method), micro.HandlerFunc(handler), micro.WithEndpointSubject(Subject(method))); err != nil {
			_ = service.Stop()
			return nil, err
		}
	}
	return service, nil
}

// endpointName returns a valid micro endpoint name for the method, which may not contain dots.
func endpointName(method string) string {
	result := []byte(method)
	for i, c := range result {
		if c == '.' {
			result[i] = '_'
		}
	}
	return string(result)
}

func decode(req micro.Request, target interface{}) bool {
	if err := json.Unmarshal(req.Data(), target); err != nil {
		_ = req.Error(ErrorCodeBadRequest, "invalid request: "+err.Error(), nil)
		return false
	}
	return true
}

func respond(req micro.Request, response interface{}) {
	if err := req.RespondJSON(response); err != nil {
		log.Logger().
			WithError(err).
			WithField(core.LogFieldMethod, req.Subject()).
			Warn("Unable to send response")
	}
}

func respondError(req micro.Request, err error) {
	code := ErrorCodeInternal
	switch {
	case errors.Is(err, ErrNotFound):
		code = ErrorCodeNotFound
	case errors.Is(err, ErrInvalidContent):
		code = ErrorCodeBadRequest
	default:
		log.Logger().
			WithError(err).
			WithField(core.LogFieldMethod, req.Subject()).
			Error("Request failed")
	}
	if err := req.Error(code, err.Error(), nil); err != nil {
		log.Logger().
			WithError(err).
			WithField(core.LogFieldMethod, req.Subject()).
			Warn("Unable to send error response")
	}
}
