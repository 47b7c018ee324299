package websocket

import (
	"context"
	"fmt"

	"github.com/kaliumosint/api/pkg/domain/scan"
)

// ScanSink publishes progress events on a session's scan channel.
type ScanSink struct {
	hub     *Hub
	channel string
}

// NewScanSink creates a sink for session.
func NewScanSink(hub *Hub, session string) *ScanSink {
	return &ScanSink{hub: hub, channel: ScanChannel(session)}
}

// Channel returns the channel events are published on.
func (s *ScanSink) Channel() string {
	return s.channel
}

// Push broadcasts the event. It fails once the hub has stopped.
func (s *ScanSink) Push(ctx context.Context, event scan.ProgressEvent) error {
	if err := s.hub.BroadcastEvent(ctx, s.channel, event); err != nil {
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	return nil
}

// Outcome publishes the final outcome of a run on the same channel.
func (s *ScanSink) Outcome(ctx context.Context, outcome scan.Outcome) error {
	return s.hub.Broadcast(ctx, s.channel, NewMessage(MessageTypeOutcome).
		WithChannel(s.channel).
		WithData(outcome))
}

// Failure tells subscribers that a run ended without an outcome.
func (s *ScanSink) Failure(ctx context.Context, code, message string) error {
	return s.hub.Broadcast(ctx, s.channel, NewMessage(MessageTypeError).
		WithChannel(s.channel).
		WithData(ErrorData{Code: code, Message: message}))
}
