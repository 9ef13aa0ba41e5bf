//go:build !linux

package logger

import "io"

// IsTerminal always reports false off linux; output is left uncolored.
func IsTerminal(io.Writer) bool { return false }
