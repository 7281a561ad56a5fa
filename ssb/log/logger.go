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

package log

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const moduleName = "SSB"

var _logger = logrus.StandardLogger().WithField("module", moduleName)

// Logger returns a logger which should be used for logging in this engine. It adds fields so
// log entries from this engine can be recognized as such.
func Logger() *logrus.Entry {
	return _logger
}

// Diagnostic returns a logger for connection supervision messages. Its entries are emitted at info level even when the
// configured verbosity is less verbose, so operators can always observe (re)connection behavior.
func Diagnostic() *logrus.Entry {
	std := logrus.StandardLogger()
	if std.IsLevelEnabled(logrus.InfoLevel) {
		return _logger
	}
	return diagnosticLogger(std).WithField("module", moduleName)
}

var diagnostic struct {
	mux    sync.Mutex
	out    *lockedWriter
	logger *logrus.Logger
}

// diagnosticLogger returns the info level logger sharing output, formatter and hooks with std.
// It is only rebuilt when the output or formatter of std changed.
func diagnosticLogger(std *logrus.Logger) *logrus.Logger {
	diagnostic.mux.Lock()
	defer diagnostic.mux.Unlock()
	if diagnostic.logger != nil && std.Out == io.Writer(diagnostic.out) && std.Formatter == diagnostic.logger.Formatter {
		return diagnostic.logger
	}
	out, ok := std.Out.(*lockedWriter)
	if !ok {
		out = &lockedWriter{target: std.Out}
		// both loggers write through out, so their lines don't interleave
		std.SetOutput(out)
	}
	diagnostic.out = out
	diagnostic.logger = &logrus.Logger{
		Out:       out,
		Formatter: std.Formatter,
		Hooks:     std.Hooks,
		Level:     logrus.InfoLevel,
		ExitFunc:  os.Exit,
	}
	return diagnostic.logger
}

type lockedWriter struct {
	mux    sync.Mutex
	target io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.target.Write(p)
}
