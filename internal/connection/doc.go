// Package connection implements the streaming session for the iTick feed.
//
// A Session:
//   - Owns exactly one WebSocket Client at a time
//   - Sends authenticate then subscribe right after every successful connect
//   - Forwards every inbound frame to the logger, untouched
//   - Reconnects after a fixed delay until the attempt limit is spent
//
// All session state lives on one event-loop goroutine. Transport goroutines
// and timers only post events to it.
package connection
