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

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// EchoServer implements both the EchoRouter interface and Start function to aid testing.
type EchoServer interface {
	EchoRouter
	Start(address string) error
	Shutdown(ctx context.Context) error
}

func createEchoServer() EchoServer {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.Use(requestLogger)
	return server
}

// requestLogger logs every HTTP request at debug level, so polling of status endpoints doesn't pollute the logs.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		logrus.StandardLogger().WithFields(logrus.Fields{
			LogFieldModule: "http-server",
			"remote_ip":    c.RealIP(),
			"method":       c.Request().Method,
			"uri":          c.Request().RequestURI,
			"status":       c.Response().Status,
		}).Debug("HTTP request")
		return nil
	}
}
