// Package timeouts collects the process-wide time limits.
package timeouts

import "time"

const (
	// ReadHeader bounds how long the HTTP gateway waits for request headers.
	ReadHeader = 5 * time.Second
	// Shutdown bounds graceful stops of servers and the trace exporter.
	Shutdown = 5 * time.Second
	// NotificationDispatch bounds one fire-and-forget inbox write.
	NotificationDispatch = 3 * time.Second
)
