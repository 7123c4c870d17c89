package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Action is the value of the "ac" field.
type Action string

const (
	ActionAuth      Action = "auth"
	ActionSubscribe Action = "subscribe"
	ActionPing      Action = "ping"
)

// Data types accepted by the subscribe command.
const (
	TypeTick  = "tick"
	TypeQuote = "quote"
	TypeDepth = "depth"
)

// ControlMessage is an outbound control frame. Built fresh per send.
type ControlMessage struct {
	Action Action `json:"ac"`
	Params string `json:"params"`
	Types  string `json:"types,omitempty"` // subscribe only
}

// BuildAuthMessage returns the authenticate frame for token.
func BuildAuthMessage(token string) ControlMessage {
	return ControlMessage{
		Action: ActionAuth,
		Params: token,
	}
}

// BuildSubscribeMessage returns the subscribe frame for symbol. Types is
// already in wire form (see JoinTypes).
func BuildSubscribeMessage(symbol, types string) ControlMessage {
	return ControlMessage{
		Action: ActionSubscribe,
		Params: symbol,
		Types:  types,
	}
}

// BuildPingMessage returns an application-level heartbeat carrying the send
// time in unix milliseconds.
func BuildPingMessage(at time.Time) ControlMessage {
	return ControlMessage{
		Action: ActionPing,
		Params: strconv.FormatInt(at.UnixMilli(), 10),
	}
}

// Encode serializes msg to its wire form.
func Encode(msg ControlMessage) ([]byte, error) {
	if msg.Action == "" {
		return nil, fmt.Errorf("encode control message: empty action")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.Action, err)
	}
	return data, nil
}

// JoinTypes renders a data-type set as the comma-separated list the server
// expects. Blank entries and duplicates are dropped; order is kept.
func JoinTypes(types []string) string {
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return strings.Join(out, ",")
}

// SplitTypes is the inverse of JoinTypes.
func SplitTypes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
