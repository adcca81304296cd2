//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// signalContext cancels on interrupt. Windows has no SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
