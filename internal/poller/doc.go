// Package poller implements the optional REST snapshot poller.
//
// The poller:
//   - Fetches a tick (or quote/depth) snapshot per instrument on an interval
//   - Runs alongside the stream as a coarse second view of the same market
//   - Uses concurrent requests with bounded concurrency
//   - Hands each snapshot, undecoded, to a handler (the logger by default)
package poller
