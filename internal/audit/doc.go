// Package audit relays security events to a Sink off the request path.
//
// The Engine decides which events to emit. This package only buffers and
// delivers them: a Dispatcher owns one goroutine draining a bounded channel
// into the configured Sink, counting events dropped while the buffer is full.
package audit
