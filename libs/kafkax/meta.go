package kafkax

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the envelope metadata carried in headers on booking events.
type EventMeta struct {
	EventID    string
	EventType  string
	OccurredAt time.Time // zero when the producer sent no occurred_at header
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, "event_id"),
		EventType: HeaderValue(msg.Headers, "event_type"),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	if raw := HeaderValue(msg.Headers, "occurred_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			meta.OccurredAt = ts
		}
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
