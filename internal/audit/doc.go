// Package audit buffers security events and relays them to a Sink off the
// request path.
//
// The engine decides which events to emit. This package only queues and delivers
// them, and it imports nothing from authcore so the root package can re-export
// its types.
package audit
