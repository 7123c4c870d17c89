// Package api provides the iTick REST client used for one-shot snapshots.
//
// REST endpoint:
//   - https://api.itick.org
//
// Every request carries the API key in the "token" header. Responses use a
// {code, msg, data} envelope where code 0 means success; data is returned
// undecoded.
//
// Key paths: /{category}/tick, /{category}/quote, /{category}/depth, /{category}/kline
package api
