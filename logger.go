// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uno

import (
	"fmt"
	"io"
)

// LogLevel controls the frequency and detail of driver output, mirroring
// lbfgsb.LogLevel's level scale.
type LogLevel int

const (
	// LogNoop emits nothing.
	LogNoop LogLevel = -1
	// LogLast prints one line when a solve starts and one summary line
	// at termination.
	LogLast LogLevel = 0
	// LogEval prints the same output as LogLast; no per-iteration line
	// is emitted at this level.
	LogEval LogLevel = 1
	// LogTrace prints the same output as LogLast; no per-iteration line
	// is emitted at this level.
	LogTrace LogLevel = 99
	// LogVerbose prints the same output as LogLast; no per-iteration
	// line is emitted at this level.
	LogVerbose LogLevel = 101
)

// Logger is the ambient, non-global logging sink held by value by each
// Solver (§9 "No global state"): Solver.Solve writes its start and end
// lines through it rather than through a package-level logger. The
// driver and the ingredients do not log.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // destination for human-readable progress lines
}

func (l Logger) enable(level LogLevel) bool { return l.Level >= level }

func (l Logger) log(format string, a ...any) {
	if l.Msg == nil {
		return
	}
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}
