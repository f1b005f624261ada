package session

import (
	"fmt"
	"log/slog"
	"os"
)

// ExitReporter logs the failure and terminates the process with status 1.
type ExitReporter struct{}

// Fatal implements FatalReporter.
func (ExitReporter) Fatal(msg string, err error) {
	slog.Error("Fatal recording error", "message", msg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

// LogNotifier logs the written files.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(paths []string) {
	for _, p := range paths {
		slog.Info("Recording file written", "path", p)
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(paths []string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(paths []string) { f(paths) }

// FatalFunc adapts a function to FatalReporter.
type FatalFunc func(msg string, err error)

// Fatal implements FatalReporter.
func (f FatalFunc) Fatal(msg string, err error) { f(msg, err) }
