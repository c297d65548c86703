package transport

import (
	"visualizer/internal/log"
	"visualizer/internal/spectrum"
)

// LoggingTransport implements the Transport interface by logging a one-line
// summary of each spectrum at debug level.
type LoggingTransport struct {
	log log.Logger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	return &LoggingTransport{log: log.Named("spectrum")}
}

// Name returns "log".
func (lt *LoggingTransport) Name() string { return "log" }

// Send logs the sequence number, freshness and peak of snap.
func (lt *LoggingTransport) Send(snap *spectrum.Snapshot) error {
	peak, bin := snap.Peak()
	lt.log.Debugf("seq=%d fresh=%t bins=%d peak=%.3f@%d", snap.Seq, snap.Fresh, snap.Len(), peak, bin)
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
