package notify

import (
	"context"
	"log"
	"strings"
)

// LogSender writes notifications to the process log. Always configured, so
// every notification has at least one durable trace.
type LogSender struct {
	logger *log.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSender{logger: logger}
}

// Send writes the notification as a single log line.
func (l *LogSender) Send(_ context.Context, title, message string) error {
	l.logger.Printf("notify: %s | %s", title, strings.ReplaceAll(message, "\n", " | "))
	return nil
}

// Name returns the sender identifier.
func (l *LogSender) Name() string { return "log" }
