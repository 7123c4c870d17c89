// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Session status and reconnect attempt counter
//   - Dial attempts, opens, closes and scheduled reconnects
//   - Inbound message and byte rates
//   - Handshake send failures by action
//   - REST snapshot poll outcomes
package metrics
