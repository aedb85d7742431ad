package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// ChannelSink hands events to a consumer over a buffered channel. Emit blocks
// while the channel is full unless ctx is done.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.events }

// JSONWriterSink writes newline-delimited JSON. Encoding errors are dropped.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// ZerologSink writes each event as one "audit" log line. Failures log at warn.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *ZerologSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	level := zerolog.InfoLevel
	if !event.Success {
		level = zerolog.WarnLevel
	}

	line := s.logger.WithLevel(level).
		Time("at", event.Timestamp).
		Str("event", event.EventType).
		Bool("success", event.Success)
	for _, f := range [...]struct{ key, val string }{
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"ip", event.IP},
		{"error_code", event.Error},
	} {
		if f.val != "" {
			line = line.Str(f.key, f.val)
		}
	}
	if len(event.Metadata) > 0 {
		meta := zerolog.Dict()
		for k, v := range event.Metadata {
			meta = meta.Str(k, v)
		}
		line = line.Dict("metadata", meta)
	}
	line.Msg("audit")
}
