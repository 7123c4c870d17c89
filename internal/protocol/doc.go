// Package protocol builds the control messages sent to the iTick stream.
//
// Outbound frames are JSON objects with fixed field names:
//
//	{"ac":"auth","params":"<token>"}
//	{"ac":"subscribe","params":"<symbol>","types":"<type,type>"}
//	{"ac":"ping","params":"<unix millis>"}
//
// Inbound frames are never decoded here; they are opaque text.
package protocol
