// Package websocket streams scan progress to browser sessions.
package websocket

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MessageType tags a frame. Clients send subscribe, unsubscribe and ping;
// everything else flows from the server.
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"

	MessageTypePong         MessageType = "pong"
	MessageTypeSubscribed   MessageType = "subscribed"
	MessageTypeUnsubscribed MessageType = "unsubscribed"
	// MessageTypeEvent carries one scan.ProgressEvent.
	MessageTypeEvent MessageType = "event"
	// MessageTypeOutcome carries the scan.Outcome that ends a run.
	MessageTypeOutcome MessageType = "outcome"
	MessageTypeError   MessageType = "error"
)

var (
	ErrHubClosed = errors.New("websocket hub closed")
	// ErrSlowClient means the send buffer was full and the client was dropped.
	ErrSlowClient = errors.New("websocket client too slow")
)

// Message is the frame envelope. Timestamp is unix milliseconds.
type Message struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

func NewMessage(t MessageType) *Message {
	return &Message{Type: t, Timestamp: time.Now().UnixMilli()}
}

func (m *Message) WithChannel(channel string) *Message {
	m.Channel = channel
	return m
}

// WithData attaches v as the payload. Values that fail to encode leave the
// payload empty.
func (m *Message) WithData(v any) *Message {
	if v != nil {
		if raw, err := json.Marshal(v); err == nil {
			m.Data = raw
		}
	}
	return m
}

// WithRequestID echoes the id a client put on its request.
func (m *Message) WithRequestID(id string) *Message {
	m.RequestID = id
	return m
}

// ChannelRequest is the data of subscribe and unsubscribe frames.
type ChannelRequest struct {
	Channel   string `json:"channel"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorData is the data of error frames and of failed runs.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChannelType is the part of a channel name before the first colon.
type ChannelType string

// ChannelTypeScan channels are named scan:<session>.
const ChannelTypeScan ChannelType = "scan"

// ParseChannel splits a channel name at its first colon. A name without a
// colon has no type.
func ParseChannel(channel string) (ChannelType, string) {
	typ, id, ok := strings.Cut(channel, ":")
	if !ok {
		return "", channel
	}
	return ChannelType(typ), id
}

// ScanChannel names the progress channel of a session.
func ScanChannel(session string) string {
	return string(ChannelTypeScan) + ":" + session
}
